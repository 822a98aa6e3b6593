// Package events defines the decision event stream used for policy tuning.
package events

import (
	"context"
	"time"
)

// DecisionEvent captures one noteworthy gate decision. Events feed later
// signature/threshold tuning; they are never consulted on the request path.
type DecisionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	SourceAddr string    `json:"source_addr"`
	UserAgent  string    `json:"user_agent"`
	Path       string    `json:"path"`
	Verdict    string    `json:"verdict"`
	Reason     string    `json:"reason"`
	RiskScore  int       `json:"risk_score"`
}

// Publisher delivers decision events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event DecisionEvent) (string, error)
	Close() error
}
