package domain

// PreviewRequest is a dry run of the rule engine for one account
type PreviewRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Class     Class  `json:"class" validate:"required,oneof=comment dm mention"`
	Text      string `json:"text" validate:"max=2200"`
}

// PreviewResult reports what the engine would do
type PreviewResult struct {
	Verdict    Verdict  `json:"verdict"`
	RuleID     string   `json:"rule_id,omitempty"`
	RuleName   string   `json:"rule_name,omitempty"`
	Matched    string   `json:"matched,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// DispatchStats is the dispatcher's live view
type DispatchStats struct {
	Pending int `json:"pending"`
}
