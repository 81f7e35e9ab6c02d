package main

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var settings Settings
		err := env.Unmarshal(env.EnvSet{"JWT_SECRET": "secret"}, &settings)

		require.NoError(t, err)
		assert.Equal(t, 8000, settings.Port)
		assert.Equal(t, "/ridepush", settings.BasePath)
		assert.Equal(t, int64(4096), settings.MaxFrameSize)
		assert.Equal(t, 10*time.Second, settings.WriteTimeout())
		assert.Zero(t, settings.IdleTimeout())
		assert.False(t, settings.AllowAnonymous)
		assert.Empty(t, settings.APIKeyList())
	})

	t.Run("lists are trimmed", func(t *testing.T) {
		var settings Settings
		err := env.Unmarshal(env.EnvSet{
			"JWT_SECRET":           "secret",
			"API_KEYS":             " key-1, ,key-2 ",
			"ALLOWED_ORIGINS":      "https://app.ridepush.dev",
			"IDLE_TIMEOUT_SECONDS": "300",
		}, &settings)

		require.NoError(t, err)
		assert.Equal(t, []string{"key-1", "key-2"}, settings.APIKeyList())
		assert.Equal(t, []string{"https://app.ridepush.dev"}, settings.AllowedOriginList())
		assert.Equal(t, 5*time.Minute, settings.IdleTimeout())
	})

	t.Run("jwt secret is required", func(t *testing.T) {
		var settings Settings
		err := env.Unmarshal(env.EnvSet{}, &settings)

		assert.Error(t, err)
	})
}

func TestBuildZapLogger(t *testing.T) {
	for _, encoding := range []string{"json", "console"} {
		logger, err := buildZapLogger(encoding, "debug")

		require.NoError(t, err)
		assert.NotNil(t, logger)
	}

	_, err := buildZapLogger("json", "verbose")
	assert.Error(t, err)
}
