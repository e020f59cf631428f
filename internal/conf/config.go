// Package conf loads and holds the application configuration. Settings are
// read once from a YAML config file plus environment overrides and injected
// into constructors; nothing resolves configuration at module load.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fieldguide/fieldguide-go/internal/errors"
)

// MainSettings covers application-wide concerns.
type MainSettings struct {
	Name string      // application name used in logs and exports
	Log  LogSettings `mapstructure:"log"`
}

// LogSettings controls the main application log file.
type LogSettings struct {
	Enabled bool
	Path    string
}

// ServiceSettings configures the remote prediction/matching service.
type ServiceSettings struct {
	BaseURL          string        `mapstructure:"baseurl"`
	Timeout          time.Duration // per-request bound, surfaced as a timeout error on expiry
	CatalogTTL       time.Duration `mapstructure:"catalogttl"`
	ImageCacheTTL    time.Duration `mapstructure:"imagecachettl"`
	CatalogSchemaVer int           `mapstructure:"catalogschemaver"`
}

// SessionSettings configures the history and favorites stores.
type SessionSettings struct {
	HistoryCapSingle int `mapstructure:"historycapsingle"`
	HistoryCapBatch  int `mapstructure:"historycapbatch"`
}

// DatastoreSettings configures local persistence.
type DatastoreSettings struct {
	Path string // sqlite database file
}

// Settings is the root configuration object.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Service   ServiceSettings
	Session   SessionSettings
	Datastore DatastoreSettings
}

// Load reads configuration from the given path (or the working directory
// when empty) and returns a validated Settings.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("fieldguide")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file is fine, defaults plus env apply.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks invariants the rest of the engine relies on.
func Validate(s *Settings) error {
	if s.Service.BaseURL == "" {
		return errors.Newf("service.baseurl must be set").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if s.Service.Timeout <= 0 {
		return errors.Newf("service.timeout must be positive, got %s", s.Service.Timeout).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if s.Session.HistoryCapSingle <= 0 || s.Session.HistoryCapBatch <= 0 {
		return errors.Newf("session history caps must be positive (single=%d batch=%d)",
			s.Session.HistoryCapSingle, s.Session.HistoryCapBatch).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	return nil
}
