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
	Warehouse WarehouseConfig
	Inference InferenceConfig
	Execution ExecutionConfig
	Artifacts ArtifactsConfig
	Pipeline  PipelineConfig
	Retry     RetryConfig
	Auth      AuthConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
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

// WarehouseConfig points at the relational store validation queries run
// against. It is a separate connection from the run-log database.
type WarehouseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type InferenceConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	ModelID     string        `mapstructure:"model_id"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ExecutionConfig struct {
	Backend      string        `mapstructure:"backend"` // http or kubernetes
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	JobImage     string        `mapstructure:"job_image"`
	Namespace    string        `mapstructure:"namespace"`
	InCluster    bool          `mapstructure:"in_cluster"`
	KubeConfig   string        `mapstructure:"kubeconfig"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WaitBudget   time.Duration `mapstructure:"wait_budget"`
}

type ArtifactsConfig struct {
	Region    string `mapstructure:"region"`
	SpecsPath string `mapstructure:"specs_path"`
	CodePath  string `mapstructure:"code_path"`
}

type PipelineConfig struct {
	MaxRemediationIterations int           `mapstructure:"max_remediation_iterations"`
	InvokeTimeout            time.Duration `mapstructure:"invoke_timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/datamorph/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DATAMORPH")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("warehouse.max_open_conns", 10)
	viper.SetDefault("inference.model_id", "claude-sonnet-4-5")
	viper.SetDefault("inference.max_tokens", 4096)
	viper.SetDefault("inference.temperature", 0.5)
	viper.SetDefault("inference.timeout", "120s")
	viper.SetDefault("execution.backend", "http")
	viper.SetDefault("execution.namespace", "default")
	viper.SetDefault("execution.poll_interval", "10s")
	viper.SetDefault("execution.wait_budget", "15m")
	viper.SetDefault("artifacts.region", "us-east-1")
	viper.SetDefault("pipeline.max_remediation_iterations", 3)
	viper.SetDefault("pipeline.invoke_timeout", "15m")
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "1s")
	viper.SetDefault("retry.max_delay", "60s")
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

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
