package model

import (
	"encoding/json"
	"time"
)

// AlertTypeHighNegativeRatio is raised when the negative/positive ratio in a
// trailing window strictly exceeds the configured threshold.
const AlertTypeHighNegativeRatio = "high_negative_ratio"

// Alert is a persisted, append-only record of a triggered threshold check.
type Alert struct {
	ID             int64           `json:"id,omitempty"`
	AlertType      string          `json:"alert_type"`
	ThresholdValue float64         `json:"threshold_value"`
	ActualValue    float64         `json:"actual_value"`
	WindowStart    time.Time       `json:"window_start"`
	WindowEnd      time.Time       `json:"window_end"`
	PostCount      int             `json:"post_count"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	Details        json.RawMessage `json:"details,omitempty"`
}
