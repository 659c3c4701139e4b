package server

import (
	"net"
	"strconv"

	"github.com/HerbHall/streamwatch/pkg/plugin"
)

// Config holds the HTTP server configuration.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ConfigFrom reads the server section.
func ConfigFrom(c plugin.Config) (Config, error) {
	cfg := Config{Host: "127.0.0.1", Port: 8080}
	if c == nil {
		return cfg, nil
	}
	err := c.Unmarshal(&cfg)
	return cfg, err
}

// Addr returns the listen address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
