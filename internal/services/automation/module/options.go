package module

import (
	"time"

	"instapilot/internal/adapters/responder"
	"instapilot/internal/platform/config"
	"instapilot/internal/services/automation/service"
)

// Options controls the rule engine and dispatcher. Values are read from env
type Options struct {
	Dispatcher service.DispatcherConfig
	OpenAI     responder.OpenAIOptions

	QuotaRetention  time.Duration
	AuditRetention  time.Duration
	JanitorSchedule string

	// MirrorAudit copies audit rows to ClickHouse when a connection is configured
	MirrorAudit bool
}

// FromConfig reads options using AUTOMATION_ and OPENAI_ prefixes
func FromConfig(cfg config.Conf) Options {
	a := cfg.Prefix("AUTOMATION_")
	def := service.DefaultDispatcherConfig()
	dl := def.Delay

	ai := cfg.Prefix("OPENAI_")
	return Options{
		Dispatcher: service.DispatcherConfig{
			Delay: service.DelayConfig{
				CommentMin:        a.MayDuration("COMMENT_DELAY_MIN", dl.CommentMin),
				CommentMax:        a.MayDuration("COMMENT_DELAY_MAX", dl.CommentMax),
				DMMin:             a.MayDuration("DM_DELAY_MIN", dl.DMMin),
				DMMax:             a.MayDuration("DM_DELAY_MAX", dl.DMMax),
				LengthScaleChars:  a.MayInt("LENGTH_SCALE_CHARS", dl.LengthScaleChars),
				LengthScaleMax:    a.MayFloat64("LENGTH_SCALE_MAX", dl.LengthScaleMax),
				DistractionChance: a.MayFloat64("DISTRACTION_CHANCE", dl.DistractionChance),
				DistractionFactor: a.MayFloat64("DISTRACTION_FACTOR", dl.DistractionFactor),
				HardMax:           a.MayDuration("DELAY_HARD_MAX", dl.HardMax),
			},
			BudgetWait:  a.MayDuration("BUDGET_WAIT", def.BudgetWait),
			BudgetPoll:  a.MayDuration("BUDGET_POLL", def.BudgetPoll),
			SendTimeout: a.MayDuration("SEND_TIMEOUT", def.SendTimeout),
			Strict:      a.MayBool("STRICT", false),
		},
		OpenAI: responder.OpenAIOptions{
			APIKey:      ai.MayString("API_KEY", ""),
			BaseURL:     ai.MayString("BASE_URL", ""),
			Model:       ai.MayString("MODEL", ""),
			Temperature: float32(ai.MayFloat64("TEMPERATURE", 0.7)),
			MaxTokens:   ai.MayInt("MAX_TOKENS", 300),
			Timeout:     ai.MayDuration("TIMEOUT", 20*time.Second),
		},
		QuotaRetention:  a.MayDuration("QUOTA_RETENTION", 7*24*time.Hour),
		AuditRetention:  a.MayDuration("AUDIT_RETENTION", 90*24*time.Hour),
		JanitorSchedule: a.MayString("JANITOR_SCHEDULE", "@daily"),
		MirrorAudit:     a.MayBool("MIRROR_AUDIT", true),
	}
}
