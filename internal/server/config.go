package server

import (
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	Host            string `env:"LAN_SHARE_HOST" envDefault:"0.0.0.0"`
	Dir             string `env:"LAN_SHARE_DIR" envDefault:"shared-files"`
	MaxUploadSize   int64  `env:"LAN_SHARE_MAX_UPLOAD_SIZE" envDefault:"524288000"`
	MetadataBackend string `env:"LAN_SHARE_METADATA_BACKEND" envDefault:"json"`
	DBPath          string `env:"LAN_SHARE_DB_PATH"`
	LogLevel        string `env:"LAN_SHARE_LOG_LEVEL" envDefault:"info"`
	Metrics         bool   `env:"LAN_SHARE_METRICS" envDefault:"true"`
}

// Validate checks the config and fills derived defaults
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("shared directory is required")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	}
	switch c.MetadataBackend {
	case BackendJSON:
	case BackendSQLite:
		if c.DBPath == "" {
			c.DBPath = filepath.Join(c.Dir, ".meta.db")
		}
	default:
		return fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
