// Package config reads settings from the environment. Every module takes a
// Conf scoped to its own prefix, e.g. cfg.Prefix("POLLER_")
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"instapilot/internal/platform/logger"
)

// Conf is a prefixed view over environment variables
type Conf struct{ prefix string }

// New returns the unprefixed root view
func New() Conf { return Conf{} }

// Prefix returns a child view; prefixes stack
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) lookup(key string) (string, string) {
	k := c.prefix + key
	return k, strings.TrimSpace(os.Getenv(k))
}

// MustString panics when key is unset or blank
func (c Conf) MustString(key string) string {
	k, v := c.lookup(key)
	if v == "" {
		logger.Get().Panic().Str("key", k).Msg("missing required env")
	}
	return v
}

// MayString returns def when key is unset or blank
func (c Conf) MayString(key, def string) string {
	if _, v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// MayInt returns def when key is unset; an unparsable value is logged and ignored
func (c Conf) MayInt(key string, def int) int {
	return parsed(c, key, def, strconv.Atoi)
}

// MayFloat64 is MayInt for floats
func (c Conf) MayFloat64(key string, def float64) float64 {
	return parsed(c, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// MayBool accepts anything strconv.ParseBool does
func (c Conf) MayBool(key string, def bool) bool {
	return parsed(c, key, def, strconv.ParseBool)
}

// MayDuration takes Go duration syntax such as 90s or 2h
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return parsed(c, key, def, time.ParseDuration)
}

func parsed[T any](c Conf, key string, def T, parse func(string) (T, error)) T {
	k, s := c.lookup(key)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", k).Str("value", s).Interface("default", def).Msg("invalid env value; using default")
		return def
	}
	return v
}
