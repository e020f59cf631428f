package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldguide/fieldguide-go/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "FieldGuide", settings.Main.Name)
	assert.Equal(t, 30*time.Second, settings.Service.Timeout)
	assert.Equal(t, 24*time.Hour, settings.Service.CatalogTTL)
	assert.Equal(t, 10, settings.Session.HistoryCapSingle)
	assert.Equal(t, 20, settings.Session.HistoryCapBatch)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
service:
  baseurl: https://api.example.org
  timeout: 10s
session:
  historycapsingle: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644))

	settings, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org", settings.Service.BaseURL)
	assert.Equal(t, 10*time.Second, settings.Service.Timeout)
	assert.Equal(t, 5, settings.Session.HistoryCapSingle)
	// untouched keys keep defaults
	assert.Equal(t, 20, settings.Session.HistoryCapBatch)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty base url", func(s *Settings) { s.Service.BaseURL = "" }},
		{"zero timeout", func(s *Settings) { s.Service.Timeout = 0 }},
		{"zero single cap", func(s *Settings) { s.Session.HistoryCapSingle = 0 }},
		{"negative batch cap", func(s *Settings) { s.Session.HistoryCapBatch = -1 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &Settings{
				Service: ServiceSettings{BaseURL: "http://localhost:5000", Timeout: time.Second},
				Session: SessionSettings{HistoryCapSingle: 10, HistoryCapBatch: 20},
			}
			tt.mutate(s)

			err := Validate(s)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
		})
	}
}
