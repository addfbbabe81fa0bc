// Package notification delivers pipeline alerts (stage failures, completed
// runs) to external channels.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Stage   string     `json:"stage,omitempty"`
	RunID   string     `json:"run_id,omitempty"`
}

// StageFailed builds the CRITICAL alert sent when a stage aborts.
func StageFailed(stage, runID string, err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("%s stage failed", stage),
		Message: fmt.Sprintf("no rows were committed: %v", err),
		Stage:   stage,
		RunID:   runID,
	}
}

// RunCompleted builds the INFO alert sent after a successful run.
func RunCompleted(runID, summary string, elapsed time.Duration) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "pipeline run completed",
		Message: fmt.Sprintf("%s (in %s)", summary, elapsed.Round(time.Millisecond)),
		RunID:   runID,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts; the fallback when no webhook is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
