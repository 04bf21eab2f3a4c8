package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		MaxWorkers:       6,
		JitterMinDelay:   1500 * time.Millisecond,
		JitterMaxDelay:   3500 * time.Millisecond,
		FailureThreshold: 0.10,
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NonPositiveWorkers(t *testing.T) {
	cfg := validConfig()
	cfg.MaxWorkers = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_JitterMinExceedsMax(t *testing.T) {
	cfg := validConfig()
	cfg.JitterMinDelay = 4 * time.Second
	cfg.JitterMaxDelay = 2 * time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidate_FailureThresholdOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.FailureThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg.FailureThreshold = -0.1
	assert.Error(t, cfg.Validate())
}

func TestIsDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.AppEnv = "development"
	assert.True(t, cfg.IsDevelopment())

	cfg.AppEnv = "production"
	assert.False(t, cfg.IsDevelopment())
}
