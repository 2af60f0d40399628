package gateway

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// cacheEntry 缓存的响应
type cacheEntry struct {
	body        []byte
	contentType string
	etag        string
	expiresAt   time.Time
}

// ResponseCache 公开接口的短时响应缓存，挡住观众页面的高频轮询
type ResponseCache struct {
	entries map[string]*cacheEntry
	mutex   sync.RWMutex

	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// NewResponseCache 创建响应缓存
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	return &ResponseCache{
		entries:         make(map[string]*cacheEntry),
		TTL:             ttl,
		MaxEntries:      maxEntries,
		CleanupInterval: time.Minute,
	}
}

// Middleware 只缓存GET请求的200响应
func (rc *ResponseCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || rc.TTL <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}

		now := time.Now()
		if entry := rc.get(key, now); entry != nil {
			if r.Header.Get("If-None-Match") == entry.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			rc.write(w, entry, "HIT")
			return
		}

		recorder := &cacheRecorder{header: make(http.Header), statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode != http.StatusOK || len(recorder.body) == 0 {
			for k, v := range recorder.header {
				w.Header()[k] = v
			}
			w.WriteHeader(recorder.statusCode)
			w.Write(recorder.body)
			return
		}

		entry := &cacheEntry{
			body:        recorder.body,
			contentType: recorder.header.Get("Content-Type"),
			etag:        fmt.Sprintf(`"%x"`, sha1.Sum(recorder.body)),
			expiresAt:   now.Add(rc.TTL),
		}
		rc.set(key, entry, now)
		rc.write(w, entry, "MISS")
	})
}

func (rc *ResponseCache) write(w http.ResponseWriter, entry *cacheEntry, status string) {
	if entry.contentType != "" {
		w.Header().Set("Content-Type", entry.contentType)
	}
	w.Header().Set("ETag", entry.etag)
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(rc.TTL.Seconds())))
	w.Header().Set("X-Cache", status)
	w.WriteHeader(http.StatusOK)
	w.Write(entry.body)
}

func (rc *ResponseCache) get(key string, now time.Time) *cacheEntry {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	entry, ok := rc.entries[key]
	if !ok || now.After(entry.expiresAt) {
		return nil
	}
	return entry
}

func (rc *ResponseCache) set(key string, entry *cacheEntry, now time.Time) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.MaxEntries > 0 && len(rc.entries) >= rc.MaxEntries {
		rc.evictExpired(now)
		if len(rc.entries) >= rc.MaxEntries {
			rc.evictOldest()
		}
	}
	rc.entries[key] = entry
}

// Invalidate 清除某个前缀下的缓存
func (rc *ResponseCache) Invalidate(prefix string) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	for key := range rc.entries {
		if strings.HasPrefix(key, prefix) {
			delete(rc.entries, key)
		}
	}
}

// Len 当前条目数
func (rc *ResponseCache) Len() int {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return len(rc.entries)
}

func (rc *ResponseCache) evictExpired(now time.Time) {
	for key, entry := range rc.entries {
		if now.After(entry.expiresAt) {
			delete(rc.entries, key)
		}
	}
}

func (rc *ResponseCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range rc.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(rc.entries, oldestKey)
	}
}

// Run 定期清理过期条目，直到 ctx 取消
func (rc *ResponseCache) Run(ctx context.Context) {
	ticker := time.NewTicker(rc.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rc.mutex.Lock()
			rc.evictExpired(now)
			rc.mutex.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// cacheRecorder 先缓冲响应，决定是否缓存后再写出
type cacheRecorder struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (cr *cacheRecorder) Header() http.Header { return cr.header }

func (cr *cacheRecorder) WriteHeader(code int) { cr.statusCode = code }

func (cr *cacheRecorder) Write(data []byte) (int, error) {
	cr.body = append(cr.body, data...)
	return len(data), nil
}
