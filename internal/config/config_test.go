package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("signing-key"))

	t.Run("success", func(t *testing.T) {
		cfg, err := NewConfig("localhost:8000", "postgres://localhost/delivery", secret,
			[]string{"http://localhost:3000"}, 25)

		assert.NoError(t, err)
		assert.Equal(t, "localhost:8000", cfg.ServerAddr)
		assert.Equal(t, []byte("signing-key"), cfg.SigningKey)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
		assert.Equal(t, 25, cfg.HistoryLimit)
	})

	t.Run("history limit falls back to default", func(t *testing.T) {
		cfg, err := NewConfig("localhost:8000", "postgres://localhost/delivery", secret, nil, 0)

		assert.NoError(t, err)
		assert.Equal(t, 50, cfg.HistoryLimit)
	})

	t.Run("empty server address", func(t *testing.T) {
		_, err := NewConfig("", "postgres://localhost/delivery", secret, nil, 50)
		assert.Error(t, err)
	})

	t.Run("empty database DSN", func(t *testing.T) {
		_, err := NewConfig("localhost:8000", "", secret, nil, 50)
		assert.Error(t, err)
	})

	t.Run("empty signing secret", func(t *testing.T) {
		_, err := NewConfig("localhost:8000", "postgres://localhost/delivery", "", nil, 50)
		assert.Error(t, err)
	})

	t.Run("secret that is not base64", func(t *testing.T) {
		_, err := NewConfig("localhost:8000", "postgres://localhost/delivery", "not base64!", nil, 50)
		assert.Error(t, err)
	})
}

func Test_FromEnv(t *testing.T) {
	t.Setenv("DELIVERYHUB_SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("DELIVERYHUB_DATABASE_DSN", "postgres://localhost/delivery")
	t.Setenv("DELIVERYHUB_ALLOWED_ORIGINS", "http://a.example.com,http://b.example.com")
	t.Setenv("DELIVERYHUB_HISTORY_LIMIT", "20")

	env, err := FromEnv()

	assert.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", env.ServerAddr)
	assert.Equal(t, "postgres://localhost/delivery", env.DatabaseDSN)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, env.AllowedOrigins)
	assert.Equal(t, 20, env.HistoryLimit)
}

func Test_FromEnv_defaults(t *testing.T) {
	env, err := FromEnv()

	assert.NoError(t, err)
	assert.Equal(t, "localhost:8000", env.ServerAddr)
	assert.Equal(t, 50, env.HistoryLimit)
}
