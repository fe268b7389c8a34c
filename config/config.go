package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool           `mapstructure:"debug"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Battle   BattleConfig   `mapstructure:"battle"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	GRPCAddress    string `mapstructure:"grpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver is either "memory" or "postgres".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig enables the Redis broadcast bus and the asynq job queue when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type BattleConfig struct {
	MaxParticipants     int           `mapstructure:"max_participants"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	RoundSummarySeconds int           `mapstructure:"round_summary_seconds"`
	VoteScore           int           `mapstructure:"vote_score"`
	OpTimeout           time.Duration `mapstructure:"op_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "getroasted")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("redis.url", "")
	v.SetDefault("battle.max_participants", 2)
	v.SetDefault("battle.poll_interval", 30*time.Second)
	v.SetDefault("battle.heartbeat_interval", 30*time.Second)
	v.SetDefault("battle.tick_interval", time.Second)
	v.SetDefault("battle.round_summary_seconds", 5)
	v.SetDefault("battle.vote_score", 10)
	v.SetDefault("battle.op_timeout", 5*time.Second)
}

// LoadConfig reads config.yaml from path. A missing file is not an error; defaults
// and GETROASTED_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("getroasted")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
