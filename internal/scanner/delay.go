package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultDelay is how long a simulated scan takes.
const DefaultDelay = 1500 * time.Millisecond

// DemoTarget is reported as the target of demo scans.
const DemoTarget = "demo://fake-finance-app"

var demoFindings = []string{
	"Login screen cloned from a licensed banking app",
	"Regulatory disclaimer missing from deposit flow",
	"Urgency colour palette on withdrawal prompts",
	"Matches 14 known scam UI fingerprints",
}

// DelayScanner simulates a scan: it waits a fixed delay and returns a
// placeholder result, or the canned sample report for demo input.
type DelayScanner struct {
	clock clockwork.Clock
	delay time.Duration
}

// NewDelayScanner builds a DelayScanner. A nil clock uses the real clock and
// a non-positive delay uses DefaultDelay.
func NewDelayScanner(clock clockwork.Clock, delay time.Duration) *DelayScanner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &DelayScanner{clock: clock, delay: delay}
}

// Delay returns the configured scan duration.
func (s *DelayScanner) Delay() time.Duration {
	return s.delay
}

// Scan waits the fixed delay unless ctx ends first.
func (s *DelayScanner) Scan(ctx context.Context, in Input) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.clock.After(s.delay):
	}

	scanID := in.ScanID
	if scanID == "" {
		scanID = uuid.NewString()
	}
	result := &Result{
		ScanID:      scanID,
		Kind:        in.Kind,
		Target:      in.Target(),
		Simulated:   true,
		CompletedAt: s.clock.Now().UTC(),
	}

	if in.Kind == KindDemo {
		result.Demo = true
		result.Verdict = VerdictLikelyScam
		result.Score = 0.92
		result.Findings = append([]string(nil), demoFindings...)
		result.Message = "Sample analysis of a known fake finance app"
		return result, nil
	}

	result.Verdict = VerdictUnknown
	result.Message = "Simulated scan, no analysis performed"
	return result, nil
}
