package service

import (
	"instapilot/internal/core/keywords"
	"instapilot/internal/services/automation/domain"
)

// triggered reports whether rule fires for text and which term matched.
// Contextual rules always fire; the others need a trigger term and no excluded term
func triggered(rule domain.Rule, text string) (bool, string, string) {
	if rule.Triggers.AIContextual {
		return true, "", ""
	}
	norm := keywords.Normalize(text)
	terms := keywords.Compile(rule.Triggers.Keywords, rule.Triggers.Hashtags)
	if terms.Empty() {
		return false, "", "rule has no keywords or hashtags"
	}
	hit, ok := terms.First(norm)
	if !ok {
		return false, "", "no keyword matched"
	}
	if ex, bad := keywords.Compile(rule.Conditions.ExcludeKeywords, nil).First(norm); bad {
		return false, "", "excluded keyword " + ex
	}
	return true, hit, ""
}
