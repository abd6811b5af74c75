package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Retention RetentionConfig
	Webhook   WebhookConfig
	Alerts    AlertConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	BaseURL     string        `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	ClientID        string   `mapstructure:"client_id"`
	EventTopic      string   `mapstructure:"event_topic"`
	EventRetryTopic string   `mapstructure:"event_retry_topic"`
	EventGroup      string   `mapstructure:"event_group"`
	StepTopic       string   `mapstructure:"step_topic"`
	StepRetryTopic  string   `mapstructure:"step_retry_topic"`
	StepGroup       string   `mapstructure:"step_group"`
	DLQTopic        string   `mapstructure:"dlq_topic"`
	DLQGroup        string   `mapstructure:"dlq_group"`
	MaxReceive      int      `mapstructure:"max_receive"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type RetentionConfig struct {
	LogDays       int           `mapstructure:"log_days"`
	ExecutionDays int           `mapstructure:"execution_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WebhookConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
}

type AlertConfig struct {
	FromAddress string `mapstructure:"from_address"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/barkbase/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("BARKBASE")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9091)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.base_url", "https://app.barkbase.io")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("kafka.client_id", "barkbase-workflow-engine")
	viper.SetDefault("kafka.event_topic", "barkbase.domain.events")
	viper.SetDefault("kafka.event_retry_topic", "barkbase.domain.events.retry")
	viper.SetDefault("kafka.event_group", "barkbase-triggers")
	viper.SetDefault("kafka.step_topic", "barkbase.workflow.steps")
	viper.SetDefault("kafka.step_retry_topic", "barkbase.workflow.steps.retry")
	viper.SetDefault("kafka.dlq_topic", "barkbase.workflow.dlq")
	viper.SetDefault("kafka.step_group", "barkbase-engines")
	viper.SetDefault("kafka.dlq_group", "barkbase-dlq-processors")
	viper.SetDefault("kafka.max_receive", 3)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("retention.log_days", 90)
	viper.SetDefault("retention.execution_days", 180)
	viper.SetDefault("retention.sweep_interval", "1h")
	viper.SetDefault("webhook.timeout_ms", 10000)
	viper.SetDefault("alerts.from_address", "alerts@barkbase.io")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
