package soh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, time.Second, cfg.Interval())
	assert.True(t, cfg.Abandon())
	cfg.SetDefaults()
	assert.Equal(t, 1.0, cfg.IntervalSeconds)
	assert.Equal(t, time.Second, cfg.DispatchPeriod())
	assert.NoError(t, cfg.Validate())

	keep := false
	cfg = Config{IntervalSeconds: 0.5, DispatchPeriodSeconds: 2, AbandonMissing: &keep}
	cfg.SetDefaults()
	assert.Equal(t, 500*time.Millisecond, cfg.Interval())
	assert.Equal(t, 2*time.Second, cfg.DispatchPeriod())
	assert.False(t, cfg.Abandon())
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{IntervalSeconds: 0.0001, DispatchPeriodSeconds: 1}.Validate())
	assert.Error(t, Config{IntervalSeconds: 1}.Validate())
}
