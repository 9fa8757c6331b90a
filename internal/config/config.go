package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TokenStoreKeyring = "keyring"
	TokenStoreFile    = "file"
)

type Config struct {
	APIURL         string        `mapstructure:"api_url" validate:"required,url"`
	SocketURL      string        `mapstructure:"socket_url" validate:"omitempty,url"`
	ResyncInterval time.Duration `mapstructure:"resync_interval" validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file" validate:"required"`
	TokenStore     string        `mapstructure:"token_store" validate:"oneof=keyring file"`
}

var validate = newValidator()

// newValidator reports fields under their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return "ADDIS_" + strings.ToUpper(f.Tag.Get("mapstructure"))
	})
	return v
}

// LiveEnabled reports whether a socket server is configured. Without one the
// client runs on fetched data only.
func (c Config) LiveEnabled() bool { return c.SocketURL != "" }

// Load reads configuration from the environment, after loading the given
// .env files (".env" when none are named). Missing .env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("ADDIS")
	v.AutomaticEnv()

	v.SetDefault("api_url", "")
	v.SetDefault("socket_url", "")
	v.SetDefault("resync_interval", "60s")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "addis.log")
	v.SetDefault("token_store", TokenStoreKeyring)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.SocketURL = strings.TrimSpace(cfg.SocketURL)
	cfg.TokenStore = strings.ToLower(strings.TrimSpace(cfg.TokenStore))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is not set", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must not be negative, got %v", fe.Field(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be positive, got %v", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
