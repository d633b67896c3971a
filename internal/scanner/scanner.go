// Package scanner defines the scan capability the landing page awaits and
// its in-process implementations.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies what the visitor asked to scan.
type Kind string

const (
	KindScreenshot Kind = "screenshot"
	KindURL        Kind = "url"
	KindDemo       Kind = "demo"
)

// Verdicts reported in Result.Verdict.
const (
	VerdictUnknown    = "unknown"
	VerdictClean      = "clean"
	VerdictSuspicious = "suspicious"
	VerdictLikelyScam = "likely_scam"
)

// ErrUnknownKind is returned by ParseKind for anything other than the two
// visitor-selectable kinds.
var ErrUnknownKind = errors.New("unknown scan kind")

// ParseKind accepts "screenshot" and "url". Demo scans are started through
// their own action and are not selectable here.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindScreenshot, KindURL:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Input is what a scan is asked to look at.
type Input struct {
	ScanID       string
	SessionID    string
	Kind         Kind
	URL          string
	UploadedFile bool
}

// Target is the human readable subject of the scan.
func (in Input) Target() string {
	switch in.Kind {
	case KindURL:
		return in.URL
	case KindDemo:
		return DemoTarget
	default:
		return "screenshot"
	}
}

// Result contains the outcome of a scan.
type Result struct {
	ScanID      string    `json:"scan_id"`
	Kind        Kind      `json:"kind"`
	Target      string    `json:"target"`
	Verdict     string    `json:"verdict"`
	Score       float32   `json:"score"`
	Findings    []string  `json:"findings,omitempty"`
	Message     string    `json:"message,omitempty"`
	Simulated   bool      `json:"simulated"`
	Demo        bool      `json:"demo"`
	CompletedAt time.Time `json:"completed_at"`
}

// Service is the scan capability. Implementations may be instant, delayed
// or remote; callers only await the result.
type Service interface {
	Scan(ctx context.Context, in Input) (*Result, error)
}

// Mux sends demo scans to Demo and everything else to Live.
type Mux struct {
	Demo Service
	Live Service
}

// Scan implements Service.
func (m Mux) Scan(ctx context.Context, in Input) (*Result, error) {
	if in.Kind == KindDemo {
		return m.Demo.Scan(ctx, in)
	}
	return m.Live.Scan(ctx, in)
}
