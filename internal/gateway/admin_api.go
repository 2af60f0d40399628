package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
	maxRequestBody          = 1 << 20
)

// APIResponse REST 接口统一响应
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PublicLeaderboard 公开排行榜
type PublicLeaderboard struct {
	SessionCode string                    `json:"session_code"`
	Status      models.SessionStatus      `json:"status"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	Rank        int                       `json:"rank,omitempty"`
}

func (s *Server) operatorRoutes(r chi.Router) {
	r.Post("/operator/logout", s.handleOperatorLogout)

	r.Get("/operator/session", s.handleOperatorSession)
	r.Put("/operator/session/status", s.handleSetStatus)
	r.Get("/operator/events", s.handleRecentEvents)

	r.Get("/operator/challenges", s.handleListChallenges)
	r.Post("/operator/challenges", s.handleAddChallenge)
	r.Put("/operator/challenges/{id}", s.handleUpdateChallenge)
	r.Delete("/operator/challenges/{id}", s.handleDeleteChallenge)

	r.Get("/operator/templates", s.handleListTemplates)
	r.Post("/operator/templates", s.handleAddTemplate)
	r.Put("/operator/templates/{id}", s.handleUpdateTemplate)
	r.Delete("/operator/templates/{id}", s.handleDeleteTemplate)

	r.Get("/operator/sessions", s.handleListSessions)
	r.Post("/operator/sessions/{code}/end", s.handleEndSession)
	r.Delete("/operator/sessions/{code}", s.handleDeleteSession)
}

// handlePublicLeaderboard 观众页面使用，优先读取Redis镜像
func (s *Server) handlePublicLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := s.store.GetSessionByCode(ctx, NormalizeCode(chi.URLParam(r, "code")))
	if err != nil {
		respondWithError(w, err)
		return
	}

	limit := queryInt(r, "limit", defaultLeaderboardLimit)
	if limit <= 0 || limit > maxLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}
	playerID := r.URL.Query().Get("player_id")

	resp := PublicLeaderboard{SessionCode: session.Code, Status: session.Status}

	if s.leaderboard != nil {
		entries, err := s.leaderboard.Top(ctx, session.ID, limit)
		if err != nil {
			s.logger.Warn("读取排行榜镜像失败", "session", session.Code, "error", err)
		} else if len(entries) > 0 {
			resp.Leaderboard = entries
			if playerID != "" {
				if rank, err := s.leaderboard.PlayerRank(ctx, session.ID, playerID); err == nil && rank > 0 {
					resp.Rank = rank
				}
			}
			respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
			return
		}
	}

	coord, err := s.registry.GetOrCreate(ctx, session.ID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	entries, err := coord.Leaderboard(ctx)
	if err != nil {
		respondWithError(w, err)
		return
	}
	for _, e := range entries {
		if playerID != "" && e.PlayerID == playerID {
			resp.Rank = e.Rank
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	resp.Leaderboard = entries
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleOperatorLogin 管理员登录，会话不存在时创建
func (s *Server) handleOperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.OperatorAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, _, err := s.operators.Authenticate(r.Context(), req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, APIResponse{Success: true, Data: result})
}

func (s *Server) handleOperatorLogout(w http.ResponseWriter, r *http.Request) {
	oc, _ := OperatorFromContext(r.Context())
	if err := s.operators.Logout(r.Context(), oc); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Message: "已注销"})
}

func (s *Server) handleOperatorSession(w http.ResponseWriter, r *http.Request) {
	oc, _ := OperatorFromContext(r.Context())
	info, err := s.operators.Snapshot(r.Context(), oc)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: info})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	oc, _ := OperatorFromContext(r.Context())
	info, err := s.operators.SetStatus(r.Context(), oc, req.Status)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: info})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	oc, _ := OperatorFromContext(r.Context())
	events, err := s.operators.RecentEvents(r.Context(), oc, queryInt(r, "limit", 0))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: events})
}

// ===== 题目 =====

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	oc, _ := OperatorFromContext(r.Context())
	challenges, err := s.operators.ListChallenges(r.Context(), oc)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: challenges})
}

func (s *Server) handleAddChallenge(w http.ResponseWriter, r *http.Request) {
	var in models.ChallengeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	oc, _ := OperatorFromContext(r.Context())
	ch, err := s.operators.AddChallenge(r.Context(), oc, in)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, APIResponse{Success: true, Data: ch})
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var in models.ChallengeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	oc, _ := OperatorFromContext(r.Context())
	ch, err := s.operators.UpdateChallenge(r.Context(), oc, chi.URLParam(r, "id"), in)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: ch})
}

func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	oc, _ := OperatorFromContext(r.Context())
	if err := s.operators.DeleteChallenge(r.Context(), oc, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Message: "题目已删除"})
}

// ===== 模板 =====

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.operators.ListTemplates(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: templates})
}

func (s *Server) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	var in models.ChallengeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := s.operators.AddTemplate(r.Context(), in)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, APIResponse{Success: true, Data: t})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in models.ChallengeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := s.operators.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: t})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.operators.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Message: "模板已删除"})
}

// ===== 会话 =====

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.operators.ListSessions(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: sessions})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.operators.EndSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: session})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.operators.DeleteSession(r.Context(), code); err != nil {
		respondWithError(w, err)
		return
	}
	s.cache.Invalidate("/api/sessions/" + NormalizeCode(code))
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Message: "会话已删除"})
}

// ===== 工具函数 =====

// jsonContentType REST 接口统一返回 JSON
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// decodeJSON 解析请求体，失败时直接写出400
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		respondWithError(w, common.Errorf(common.ErrBadRequest, "无效的请求格式"))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// respondJSON 写出JSON响应
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
