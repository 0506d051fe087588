package config

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"node.town/listen/speechtotext"
)

const (
	KeyURL      = "url"
	KeyUsername = "username"
	KeyPassword = "password"
	KeyToken    = "token"
	KeyModel    = "model"
	KeyLogLevel = "log_level"
)

var ErrMissingCredentials = errors.New("config: username and password must be set together")

type Config struct {
	URL      string
	Username string
	Password string
	Token    string
	Model    string
	LogLevel log.Level
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyURL, speechtotext.BaseURL)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	level, err := log.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}

	cfg := &Config{
		URL:      v.GetString(KeyURL),
		Username: v.GetString(KeyUsername),
		Password: v.GetString(KeyPassword),
		Token:    v.GetString(KeyToken),
		Model:    v.GetString(KeyModel),
		LogLevel: level,
	}
	if cfg.URL == "" {
		cfg.URL = speechtotext.BaseURL
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

// ClientOptions turns the config into client options. A token wins over
// basic credentials.
func (c *Config) ClientOptions(logger *log.Logger) []speechtotext.Option {
	opts := []speechtotext.Option{
		speechtotext.WithBaseURL(c.URL),
		speechtotext.WithLogger(logger),
	}
	switch {
	case c.Token != "":
		opts = append(opts, speechtotext.WithBearerToken(c.Token))
	case c.Username != "":
		opts = append(opts, speechtotext.WithBasicAuth(c.Username, c.Password))
	}
	return opts
}
