package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling. Each level in
// cfg.Levels gets its own sampler with its own initial/thereafter rates;
// levels without an entry, and everything at Error and above, always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := make([]zapcore.Core, 0, len(cfg.Levels)+2)

	// Error and above bypass sampling: failure detail is exactly what a
	// sampled-away line would have carried.
	cores = append(cores, &levelBandCore{
		Core: core,
		min:  zapcore.ErrorLevel,
		max:  zapcore.FatalLevel,
	})

	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	for lvl, rates := range cfg.Levels {
		if lvl >= zapcore.ErrorLevel {
			continue
		}
		sampled[lvl] = true
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelBandCore{Core: core, min: lvl, max: lvl},
			cfg.Tick.Duration(),
			rates.Initial,
			rates.Thereafter,
		))
	}

	// Sub-error levels with no configured rate pass through unsampled.
	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		if !sampled[lvl] {
			cores = append(cores, &levelBandCore{Core: core, min: lvl, max: lvl})
		}
	}

	return zapcore.NewTee(cores...)
}

// levelBandCore restricts a core to an inclusive level range.
type levelBandCore struct {
	zapcore.Core
	min zapcore.Level
	max zapcore.Level
}

func (c *levelBandCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelBandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelBandCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelBandCore{
		Core: c.Core.With(fields),
		min:  c.min,
		max:  c.max,
	}
}
