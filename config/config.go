// config.go

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 服务器配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Game     GameConfig     `mapstructure:"game"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig 服务器基本配置
type ServerConfig struct {
	Port              int      `mapstructure:"port"`
	Debug             bool     `mapstructure:"debug"`
	LogLevel          string   `mapstructure:"log_level"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres 或 memory
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AttackConfig 单个攻击类型的配置
type AttackConfig struct {
	Cost     int           `mapstructure:"cost"`
	Duration time.Duration `mapstructure:"duration"`
}

// GameConfig 游戏规则配置
type GameConfig struct {
	StartingCoins      int                     `mapstructure:"starting_coins"`
	HintCost           int                     `mapstructure:"hint_cost"`
	AttackCooldown     time.Duration           `mapstructure:"attack_cooldown"`
	AllTargetSurcharge int                     `mapstructure:"all_target_surcharge"`
	StealMaxItems      int                     `mapstructure:"steal_max_items"`
	ActivityLimit      int                     `mapstructure:"activity_limit"`
	DefaultMaxPlayers  int                     `mapstructure:"default_max_players"`
	StoreTimeout       time.Duration           `mapstructure:"store_timeout"`
	IdleTimeout        time.Duration           `mapstructure:"idle_timeout"`
	SweepInterval      time.Duration           `mapstructure:"sweep_interval"`
	CleanupGrace       time.Duration           `mapstructure:"cleanup_grace"`
	Attacks            map[string]AttackConfig `mapstructure:"attacks"`
}

// AuthConfig 管理员令牌配置
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig Config
)

// setDefaults 注册默认值，配置文件缺省时生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("game.starting_coins", 100)
	v.SetDefault("game.hint_cost", 10)
	v.SetDefault("game.attack_cooldown", 30*time.Second)
	v.SetDefault("game.all_target_surcharge", 20)
	v.SetDefault("game.steal_max_items", 2)
	v.SetDefault("game.activity_limit", 10)
	v.SetDefault("game.default_max_players", 50)
	v.SetDefault("game.store_timeout", 5*time.Second)
	v.SetDefault("game.idle_timeout", 5*time.Minute)
	v.SetDefault("game.sweep_interval", 5*time.Minute)
	v.SetDefault("game.cleanup_grace", 2*time.Minute)

	v.SetDefault("auth.jwt_secret", "flagstorm-secret-key")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) error {
	// .env 只是可选的环境变量来源
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("读取.env文件失败: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("无法读取配置文件: %w", err)
		}
		log.Printf("配置文件 %s 不存在，使用默认配置", configPath)
	}

	if err := v.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("无法解析配置文件: %w", err)
	}

	return nil
}

// GetDSN 获取PostgreSQL连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr 获取Redis连接地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
