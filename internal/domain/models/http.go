package models

// ThresholdsRequest tunes the gate chain at runtime.
type ThresholdsRequest struct {
	Quality       *float64 `json:"quality" validate:"omitempty,gte=0,lte=100"`
	MLProbability *float64 `json:"ml_probability" validate:"omitempty,gte=0,lte=1"`
	WinRate       *float64 `json:"win_rate" validate:"omitempty,gte=0,lte=100"`
}

// SignalsRequest queries a user's distributed signals.
type SignalsRequest struct {
	UserID     string `query:"user_id" validate:"required"`
	ActiveOnly bool   `query:"active_only"`
	From       string `query:"from"`
	To         string `query:"to"`
	Limit      int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

// DropRequest triggers a manual release for a tier.
type DropRequest struct {
	Tier string `param:"tier" validate:"required,oneof=FREE PRO MAX"`
}
