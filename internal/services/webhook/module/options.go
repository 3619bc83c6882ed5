package module

import (
	"instapilot/internal/core/dedup"
	"instapilot/internal/platform/config"
)

// Options controls the webhook gateway
type Options struct {
	VerifyToken   string
	AppSecret     string
	SkipSignature bool
	DedupCapacity int
}

// FromConfig reads options using WEBHOOK_ prefix
func FromConfig(cfg config.Conf) Options {
	w := cfg.Prefix("WEBHOOK_")
	return Options{
		VerifyToken:   w.MayString("VERIFY_TOKEN", ""),
		AppSecret:     w.MayString("APP_SECRET", ""),
		SkipSignature: w.MayBool("SKIP_SIGNATURE", false),
		DedupCapacity: w.MayInt("DEDUP_CAPACITY", dedup.DefaultCapacity),
	}
}
