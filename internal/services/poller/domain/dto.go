package domain

// AccountRef names one connected account in an ops request
type AccountRef struct {
	AccountID string `json:"account_id" validate:"required"`
}

// AttachResult reports whether a chain was started or stopped
type AttachResult struct {
	AccountID string `json:"account_id"`
	Changed   bool   `json:"changed"`
}

// ForceResult reports whether a forced poll ran
type ForceResult struct {
	AccountID string `json:"account_id"`
	Polled    bool   `json:"polled"`
}
