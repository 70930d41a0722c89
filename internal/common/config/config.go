// Package config 提供应用配置管理功能
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Name            string `mapstructure:"name"`
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	AccessTokenExpire  int    `mapstructure:"access_token_expire"`
	RefreshTokenExpire int    `mapstructure:"refresh_token_expire"`
	Issuer             string `mapstructure:"issuer"`
}

// AccessTokenDuration 返回访问令牌有效期
func (j *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenExpire) * time.Hour
}

// RefreshTokenDuration 返回刷新令牌有效期
func (j *JWTConfig) RefreshTokenDuration() time.Duration {
	return time.Duration(j.RefreshTokenExpire) * time.Hour
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled               bool     `mapstructure:"enabled"`
	Brokers               []string `mapstructure:"brokers"`
	GroupID               string   `mapstructure:"group_id"`
	ConsultationPaidTopic string   `mapstructure:"consultation_paid_topic"`
	WithdrawalEventTopic  string   `mapstructure:"withdrawal_event_topic"`
}

// SettlementConfig 律师结算配置
type SettlementConfig struct {
	FreezeDays    int            `mapstructure:"freeze_days"`
	Fee           FeeTierConfig  `mapstructure:"fee"`
	Withdraw      WithdrawConfig `mapstructure:"withdraw"`
	SecretKey     string         `mapstructure:"secret_key"`
	SettleCron    string         `mapstructure:"settle_cron"`
	ReconcileCron string         `mapstructure:"reconcile_cron"`
	SettleBatch   int            `mapstructure:"settle_batch"`
}

// FreezePeriod 返回收入冻结时长
func (s *SettlementConfig) FreezePeriod() time.Duration {
	return time.Duration(s.FreezeDays) * 24 * time.Hour
}

// FeeTierConfig 平台抽成档位配置
//
// 抽成比例取值 [0, 1]，最多四位小数，与收入记录的 fee_rate 精度一致。
type FeeTierConfig struct {
	DefaultRate          float64 `mapstructure:"default_rate"`
	VerifiedRate         float64 `mapstructure:"verified_rate"`
	GoldRate             float64 `mapstructure:"gold_rate"`
	PartnerRate          float64 `mapstructure:"partner_rate"`
	VerifiedMinCompleted int     `mapstructure:"verified_min_completed"`
	VerifiedMinRating    float64 `mapstructure:"verified_min_rating"`
	GoldMinCompleted     int     `mapstructure:"gold_min_completed"`
	GoldMinRating        float64 `mapstructure:"gold_min_rating"`
	PartnerLawyerIDs     []int64 `mapstructure:"partner_lawyer_ids"`
}

// Validate 校验抽成比例的范围与精度
func (f *FeeTierConfig) Validate() error {
	rates := []struct {
		key  string
		rate float64
	}{
		{"default_rate", f.DefaultRate},
		{"verified_rate", f.VerifiedRate},
		{"gold_rate", f.GoldRate},
		{"partner_rate", f.PartnerRate},
	}
	for _, r := range rates {
		if r.rate < 0 || r.rate > 1 {
			return fmt.Errorf("settlement.fee.%s must be within [0, 1], got %v", r.key, r.rate)
		}
		if decimal.NewFromFloat(r.rate).Exponent() < -4 {
			return fmt.Errorf("settlement.fee.%s allows at most 4 decimal places, got %v", r.key, r.rate)
		}
	}
	return nil
}

// WithdrawConfig 提现配置
type WithdrawConfig struct {
	MinAmount  float64  `mapstructure:"min_amount"`
	MaxAmount  float64  `mapstructure:"max_amount"`
	FeeFixed   float64  `mapstructure:"fee_fixed"`
	FeeRate    float64  `mapstructure:"fee_rate"`
	Methods    []string `mapstructure:"methods"`
	MaxPending int      `mapstructure:"max_pending"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./configs")
			v.AddConfigPath(".")
		}

		// 环境变量支持
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认值
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		cfg := &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
		if err = cfg.Settlement.Fee.Validate(); err != nil {
			return
		}
		globalConfig = cfg
	})

	return globalConfig, err
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		globalConfig = Default()
	}
	return globalConfig
}

// Default 返回只包含默认值的配置
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	return cfg
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.name", "lawconsult-settlement")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "lawconsult")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "Asia/Shanghai")
	v.SetDefault("database.sqlite_path", "./data/lawconsult.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_mode", true)
	v.SetDefault("database.slow_threshold", 200)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	// JWT defaults
	v.SetDefault("jwt.secret", "your-super-secret-key-change-in-production")
	v.SetDefault("jwt.access_token_expire", 168)
	v.SetDefault("jwt.refresh_token_expire", 720)
	v.SetDefault("jwt.issuer", "lawconsult")

	// Logger defaults
	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "./logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.caller", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "lawconsult")
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "lawconsult-settlement")
	v.SetDefault("tracing.sample_rate", 1.0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "lawyer-settlement")
	v.SetDefault("kafka.consultation_paid_topic", "consultation.paid")
	v.SetDefault("kafka.withdrawal_event_topic", "lawyer.withdrawal")

	// Settlement defaults
	v.SetDefault("settlement.freeze_days", 7)
	v.SetDefault("settlement.fee.default_rate", 0.15)
	v.SetDefault("settlement.fee.verified_rate", 0.13)
	v.SetDefault("settlement.fee.gold_rate", 0.10)
	v.SetDefault("settlement.fee.partner_rate", 0.08)
	v.SetDefault("settlement.fee.verified_min_completed", 10)
	v.SetDefault("settlement.fee.verified_min_rating", 4.5)
	v.SetDefault("settlement.fee.gold_min_completed", 50)
	v.SetDefault("settlement.fee.gold_min_rating", 4.8)
	v.SetDefault("settlement.fee.partner_lawyer_ids", []int64{})
	v.SetDefault("settlement.withdraw.min_amount", 100.00)
	v.SetDefault("settlement.withdraw.max_amount", 50000.00)
	v.SetDefault("settlement.withdraw.fee_fixed", 0)
	v.SetDefault("settlement.withdraw.fee_rate", 0)
	v.SetDefault("settlement.withdraw.methods", []string{"bank_card", "alipay"})
	v.SetDefault("settlement.withdraw.max_pending", 5)
	v.SetDefault("settlement.secret_key", "change-me-settlement-secret")
	v.SetDefault("settlement.settle_cron", "@every 1h")
	v.SetDefault("settlement.reconcile_cron", "@daily")
	v.SetDefault("settlement.settle_batch", 500)
}

// IsDebug 是否为调试模式
func (c *Config) IsDebug() bool {
	return c.Server.Mode == "debug"
}

// IsRelease 是否为发布模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}
