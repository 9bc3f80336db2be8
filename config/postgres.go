package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the configuration for connecting to the optional symbol store.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// SSM names the Parameter Store entries used in prod.
	SSM SSMParameters `mapstructure:"ssm"`
}

type SSMParameters struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN returns the connection string for dbName ("" means the configured database).
// In prod, host and credentials come from AWS SSM Parameter Store.
func (cfg *PostgresConfig) DSN(env, dbName string) (string, error) {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		params, err := getParameterStoreValues(ctx, true, cfg.SSM.Host, cfg.SSM.User, cfg.SSM.Password)
		if err != nil {
			return "", err
		}
		host, user, password = params[0], params[1], params[2]
	}
	if dbName == "" {
		dbName = cfg.DBName
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn, nil
}

func getParameterStoreValues(ctx context.Context, decrypt bool, names ...string) ([]string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := ssm.NewFromConfig(awsCfg)

	values := make([]string, 0, len(names))
	for _, name := range names {
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &name,
			WithDecryption: &decrypt,
		})
		if err != nil {
			return nil, fmt.Errorf("get parameter %s: %w", name, err)
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			return nil, fmt.Errorf("parameter %s has no value", name)
		}
		values = append(values, *result.Parameter.Value)
	}
	return values, nil
}
