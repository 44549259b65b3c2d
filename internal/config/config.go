package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/leopark123/ideahub/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Task      TaskConfig      `mapstructure:"task"`
	Refund    RefundConfig    `mapstructure:"refund"`
	Event     EventConfig     `mapstructure:"event"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"` // 启动时执行迁移
}

// DSN gorm 使用的连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL golang-migrate 使用的连接 URL
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）

	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// GetRotation 实现 logger.LogConfig 接口
func (l LogConfig) GetRotation() logger.Rotation {
	return logger.Rotation{MaxSizeMB: l.MaxSizeMB, MaxBackups: l.MaxBackups, MaxAgeDays: l.MaxAgeDays}
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	DefaultCurrency  string `mapstructure:"default_currency"`
	ConflictRetries  uint   `mapstructure:"conflict_retries"` // 乐观锁冲突重试次数
	AutoCorrectDrift bool   `mapstructure:"auto_correct_drift"`
}

// TaskConfig 各定时任务的执行间隔
type TaskConfig struct {
	Activation    time.Duration `mapstructure:"activation"`
	Expiry        time.Duration `mapstructure:"expiry"`
	Refund        time.Duration `mapstructure:"refund"`
	Reconcile     time.Duration `mapstructure:"reconcile"`
	Outbox        time.Duration `mapstructure:"outbox"`
	PaidSweep     time.Duration `mapstructure:"paid_sweep"`
	PaidSweepIdle time.Duration `mapstructure:"paid_sweep_idle"` // Paid 状态停留超过该时长才补结算
	ClosedWithin  time.Duration `mapstructure:"closed_within"`   // 对账覆盖最近关闭的众筹
	BatchSize     int           `mapstructure:"batch_size"`
}

// RefundConfig 退款重试配置
type RefundConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	StuckAfter     time.Duration `mapstructure:"stuck_after"`
	BatchSize      int           `mapstructure:"batch_size"`
	Workers        int           `mapstructure:"workers"`
}

type EventConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	OutboxMinAge time.Duration `mapstructure:"outbox_min_age"` // 未派发超过该时长才由补发任务处理
}

type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers"`
	ClientID       string   `mapstructure:"client_id"`
	GroupID        string   `mapstructure:"group_id"`
	EventsTopic    string   `mapstructure:"events_topic"`
	RefundTopic    string   `mapstructure:"refund_topic"`
	PaidTopic      string   `mapstructure:"paid_topic"`
	RefundAckTopic string   `mapstructure:"refund_ack_topic"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

// RateLimitConfig 写接口限流，依赖 Redis，未启用 Redis 时放行
type RateLimitConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Window  time.Duration   `mapstructure:"window"`
	Default int             `mapstructure:"default"` // 每个客户端每个路径在窗口内的请求上限
	Rules   []RateLimitRule `mapstructure:"rules"`   // 按路径前缀覆盖，先匹配先生效
}

type RateLimitRule struct {
	Prefix string `mapstructure:"prefix"`
	Limit  int    `mapstructure:"limit"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	Issuer        string `mapstructure:"issuer"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// DirectoryConfig 内存模式下的项目列表
type DirectoryConfig struct {
	Projects []ProjectEntry `mapstructure:"projects"`
}

type ProjectEntry struct {
	ID      string `mapstructure:"id"`
	OwnerID string `mapstructure:"owner_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ideahub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")

	v.SetDefault("ledger.default_currency", "CNY")
	v.SetDefault("ledger.conflict_retries", 5)
	v.SetDefault("ledger.auto_correct_drift", false)

	v.SetDefault("task.activation", "30s")
	v.SetDefault("task.expiry", "30s")
	v.SetDefault("task.refund", "30s")
	v.SetDefault("task.reconcile", "10m")
	v.SetDefault("task.outbox", "15s")
	v.SetDefault("task.paid_sweep", "1m")
	v.SetDefault("task.paid_sweep_idle", "1m")
	v.SetDefault("task.closed_within", "24h")
	v.SetDefault("task.batch_size", 100)

	v.SetDefault("refund.initial_backoff", "30s")
	v.SetDefault("refund.max_backoff", "1h")
	v.SetDefault("refund.multiplier", 2.0)
	v.SetDefault("refund.stuck_after", "24h")
	v.SetDefault("refund.batch_size", 50)
	v.SetDefault("refund.workers", 8)

	v.SetDefault("event.pool_size", 16)
	v.SetDefault("event.outbox_min_age", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "ideahub-crowdfunding")
	v.SetDefault("kafka.group_id", "ideahub-ledger")
	v.SetDefault("kafka.events_topic", "ideahub.crowdfunding.events")
	v.SetDefault("kafka.refund_topic", "ideahub.payments.refund-requested")
	v.SetDefault("kafka.paid_topic", "ideahub.payments.paid")
	v.SetDefault("kafka.refund_ack_topic", "ideahub.payments.refund-settled")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", "30s")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.default", 200)
	v.SetDefault("rate_limit.rules", []map[string]interface{}{
		{"prefix": "/api/v1/investments", "limit": 10},
	})

	v.SetDefault("auth.issuer", "ideahub")
}

// Load 读取配置文件，path 为空时按默认路径查找，环境变量以 IDEAHUB_ 为前缀覆盖
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/ideahub")
	}

	// 自动读取环境变量
	v.SetEnvPrefix("IDEAHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验启动必需的配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Ledger.DefaultCurrency == "" {
		return errors.New("ledger.default_currency is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Refund.Multiplier < 1 {
		return fmt.Errorf("refund.multiplier must be at least 1, got %v", c.Refund.Multiplier)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Window <= 0 || c.RateLimit.Default <= 0) {
		return errors.New("rate_limit.window and rate_limit.default must be positive when rate limiting is enabled")
	}
	for _, r := range c.RateLimit.Rules {
		if r.Prefix == "" || r.Limit <= 0 {
			return fmt.Errorf("rate_limit rule needs a prefix and a positive limit, got %+v", r)
		}
	}
	return nil
}
