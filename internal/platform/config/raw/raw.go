// Package raw reads environment variables without logging, for the logger's
// own bootstrap
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a prefixed view over environment variables
type Conf struct{ prefix string }

// New returns the unprefixed root view
func New() Conf { return Conf{} }

// Prefix returns a child view; prefixes stack
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Get returns the trimmed value or def when blank
func (c Conf) Get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(c.prefix + key)); v != "" {
		return v
	}
	return def
}

// GetBool falls back to def when the value is blank or unparsable
func (c Conf) GetBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(c.Get(key, "")); err == nil {
		return v
	}
	return def
}

// GetInt falls back to def when the value is blank, unparsable or negative
func (c Conf) GetInt(key string, def int) int {
	if n, err := strconv.Atoi(c.Get(key, "")); err == nil && n >= 0 {
		return n
	}
	return def
}
