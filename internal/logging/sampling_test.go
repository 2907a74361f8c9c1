package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/causalityd/internal/config"
)

func sampledTestLogger(cfg SamplingConfig) (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return zap.New(newSampledCore(core, cfg)), observed
}

func TestSampling_DisabledPassesEverything(t *testing.T) {
	t.Parallel()

	logger, observed := sampledTestLogger(SamplingConfig{Enabled: false})
	for i := 0; i < 50; i++ {
		logger.Info("chatty")
	}
	assert.Equal(t, 50, observed.Len())
}

func TestSampling_DropsRepeatedInfo(t *testing.T) {
	t.Parallel()

	logger, observed := sampledTestLogger(SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 3, Thereafter: 0},
		},
	})

	for i := 0; i < 50; i++ {
		logger.Info("chatty")
	}
	assert.Equal(t, 3, observed.Len(), "only the initial burst survives within a tick")
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	t.Parallel()

	logger, observed := sampledTestLogger(SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 1, Thereafter: 0},
		},
	})

	for i := 0; i < 20; i++ {
		logger.Error("broken")
	}
	assert.Equal(t, 20, observed.Len())
}
