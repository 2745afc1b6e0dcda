package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "embeddinggemma", cfg.Model)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("https://api.example.com"),
		WithModel("text-embedding-3-small"),
	)
	assert.Equal(t, "https://api.example.com", cfg.Host)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"bare host gains suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash trimmed", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"already canonical", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Model: "embeddinggemma"}
	require.Error(t, cfg.Validate())

	cfg = &Config{Host: "http://localhost:11434"}
	require.Error(t, cfg.Validate())

	cfg = &Config{Host: "http://localhost:11434", Model: "embeddinggemma"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
}
