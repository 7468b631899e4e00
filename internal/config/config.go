package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/spf13/viper"
)

type Config struct {
	DBSource        string                 `mapstructure:"db_source"`
	Port            string                 `mapstructure:"server_port"`
	Env             string                 `mapstructure:"environment"`
	OverdraftPolicy domain.OverdraftPolicy `mapstructure:"-"`
}

// Load reads config.yaml (optional) and the environment. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server_port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("overdraft_policy", string(domain.OverdraftClamp))
	// Keys with no default are invisible to Unmarshal unless bound.
	_ = v.BindEnv("db_source")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	policy, err := domain.ParseOverdraftPolicy(v.GetString("overdraft_policy"))
	if err != nil {
		return nil, err
	}
	cfg.OverdraftPolicy = policy

	return &cfg, nil
}
