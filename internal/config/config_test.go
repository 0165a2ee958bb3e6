// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 8, cfg.Prior.GridSize)
	assert.Equal(t, ModeObserve, cfg.Prior.Mode)
	assert.Equal(t, 0.0005, cfg.Prior.ScoreFloor)
	assert.Equal(t, 5, cfg.Prior.MaxConsecutiveRejections)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1440, cfg.Browser.ScreenW)
	assert.Equal(t, 900, cfg.Browser.ScreenH)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 30, cfg.Recorder.MaxSteps)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent.Model)
	assert.True(t, cfg.Agent.RecordEpisodes)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate(), "the default configuration must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		cfgBadScreen := *cfg
		cfgBadScreen.Browser.ScreenW = 0
		err := cfgBadScreen.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.screen_w")

		cfgBadRecorder := *cfg
		cfgBadRecorder.Recorder.MaxSteps = 0
		assert.Error(t, cfgBadRecorder.Validate())

		cfgBadAgent := *cfg
		cfgBadAgent.Agent.MaxSteps = -1
		assert.Error(t, cfgBadAgent.Validate())

		cfgBadRate := *cfg
		cfgBadRate.Agent.RequestsPerMinute = 0
		assert.Error(t, cfgBadRate.Validate())
	})

	t.Run("Prior Validation", func(t *testing.T) {
		valid := PriorConfig{
			GridSize:                 8,
			TrainWorkers:             4,
			Mode:                     ModeEnforce,
			ScoreFloor:               0.001,
			CellThreshold:            0.01,
			MaxSnapDistancePx:        160,
			MaxConsecutiveRejections: 5,
		}
		assert.NoError(t, valid.Validate())

		badGrid := valid
		badGrid.GridSize = 0
		assert.Error(t, badGrid.Validate())

		hugeGrid := valid
		hugeGrid.GridSize = 128
		assert.Error(t, hugeGrid.Validate())

		badMode := valid
		badMode.Mode = "audit"
		err := badMode.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "mode")

		badFloor := valid
		badFloor.ScoreFloor = 1.5
		assert.Error(t, badFloor.Validate())

		badSnap := valid
		badSnap.MaxSnapDistancePx = -1
		assert.Error(t, badSnap.Validate())

		badLimit := valid
		badLimit.MaxConsecutiveRejections = 0
		assert.Error(t, badLimit.Validate())
	})
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("reads yaml overrides", func(t *testing.T) {
		yaml := []byte(`
prior:
  grid_size: 16
  mode: "enforce"
browser:
  screen_w: 1920
  screen_h: 1080
episodes:
  allowlist:
    - "example.com"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 16, cfg.Prior.GridSize)
		assert.Equal(t, ModeEnforce, cfg.Prior.Mode)
		assert.Equal(t, 1920, cfg.Browser.ScreenW)
		assert.Equal(t, []string{"example.com"}, cfg.Episodes.Allowlist)
		// Untouched values keep their defaults.
		assert.Equal(t, 0.0005, cfg.Prior.ScoreFloor)
	})

	t.Run("rejects invalid overrides", func(t *testing.T) {
		yaml := []byte(`
prior:
  mode: "yolo"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		_, err := NewConfigFromViper(v)
		assert.Error(t, err)
	})

	t.Run("api key from environment", func(t *testing.T) {
		t.Setenv("SHERPA_GEMINI_API_KEY", "test-key-123")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "test-key-123", cfg.Agent.APIKey)
	})
}
