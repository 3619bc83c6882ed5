package service

import (
	"math/rand/v2"
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/services/automation/domain"
)

// DelayConfig shapes the human-like wait before a reply
type DelayConfig struct {
	CommentMin time.Duration
	CommentMax time.Duration
	DMMin      time.Duration
	DMMax      time.Duration

	// LengthScaleChars of incoming text add 100% to the draw, up to LengthScaleMax
	LengthScaleChars int
	LengthScaleMax   float64

	// DistractionChance of draws are multiplied by DistractionFactor
	DistractionChance float64
	DistractionFactor float64

	HardMax time.Duration
}

// DefaultDelay returns the production delay model
func DefaultDelay() DelayConfig {
	return DelayConfig{
		CommentMin:        30 * time.Second,
		CommentMax:        3 * time.Minute,
		DMMin:             8 * time.Second,
		DMMax:             45 * time.Second,
		LengthScaleChars:  280,
		LengthScaleMax:    0.5,
		DistractionChance: 0.1,
		DistractionFactor: 3,
		HardMax:           8 * time.Minute,
	}
}

// Validate checks ranges
func (c DelayConfig) Validate() error {
	switch {
	case c.CommentMin < 0 || c.CommentMax < c.CommentMin:
		return perr.InvalidArgf("automation: comment delay range %s-%s", c.CommentMin, c.CommentMax)
	case c.DMMin < 0 || c.DMMax < c.DMMin:
		return perr.InvalidArgf("automation: dm delay range %s-%s", c.DMMin, c.DMMax)
	case c.HardMax < c.CommentMax || c.HardMax < c.DMMax:
		return perr.InvalidArgf("automation: hard max %s below a range maximum", c.HardMax)
	case c.DistractionChance < 0 || c.DistractionChance > 1 || c.DistractionFactor < 1:
		return perr.InvalidArgf("automation: distraction %.2f x%.1f", c.DistractionChance, c.DistractionFactor)
	case c.LengthScaleMax < 0:
		return perr.InvalidArgf("automation: negative length scale")
	}
	return nil
}

// rng is the randomness the delay model draws from
type rng interface {
	Float64() float64
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Float64() float64     { return rand.Float64() }
func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// Draw picks the wait for an event of class with textLen runes; floor raises the minimum
func (c DelayConfig) Draw(class domain.Class, textLen int, floor time.Duration, r rng) time.Duration {
	lo, hi := c.DMMin, c.DMMax
	if class == domain.ClassComment {
		lo, hi = c.CommentMin, c.CommentMax
	}
	d := lo
	if span := int64(hi - lo); span > 0 {
		d += time.Duration(r.Int64N(span + 1))
	}

	if c.LengthScaleChars > 0 && textLen > 0 {
		scale := min(float64(textLen)/float64(c.LengthScaleChars), c.LengthScaleMax)
		d = time.Duration(float64(d) * (1 + scale))
	}
	if c.DistractionChance > 0 && r.Float64() < c.DistractionChance {
		d = time.Duration(float64(d) * c.DistractionFactor)
	}
	d = max(d, floor)
	if c.HardMax > 0 {
		d = min(d, c.HardMax)
	}
	return d
}
