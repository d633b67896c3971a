package landing

import (
	"context"
	"errors"
	"time"

	"github.com/example/scamshield/internal/scanner"
)

// AnalysisPath is where the page navigates once a scan completes.
const AnalysisPath = "/analysis"

// Sentinel keys and the single value they are ever set to.
const (
	SentinelUploadedFile = "uploadedFile"
	SentinelDemoMode     = "demoMode"
	SentinelValue        = "true"
)

// Notification texts.
const (
	MsgUploaded   = "Screenshot uploaded successfully"
	MsgMissingURL = "Please enter a URL"
	MsgScanning   = "Initiating deep scan..."
	MsgDemo       = "Loading demo analysis..."
	MsgScanFailed = "Scan failed, please try again"
)

var (
	// ErrMissingURL is returned when a URL scan is submitted with an empty URL.
	ErrMissingURL = errors.New("missing url")
	// ErrScanInProgress is returned when a scan is submitted while one is pending.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrPageClosed is returned once the page has navigated away or been closed.
	ErrPageClosed = errors.New("page closed")
)

// State is the page's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateNavigated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateNavigated:
		return "navigated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FileRef describes the file the upload widget handed over. The page never
// sees the contents.
type FileRef struct {
	Name        string
	Size        int64
	ContentType string
}

// Handoff is the payload passed along with navigation to AnalysisPath.
type Handoff struct {
	ScanID       string          `json:"scan_id"`
	Kind         scanner.Kind    `json:"kind"`
	URL          string          `json:"url,omitempty"`
	UploadedFile bool            `json:"uploaded_file"`
	DemoMode     bool            `json:"demo_mode"`
	Result       *scanner.Result `json:"result,omitempty"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// Notifier shows transient messages to the visitor.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Navigator moves the visitor to another screen.
type Navigator interface {
	Navigate(path string, handoff Handoff)
}

// SentinelWriter persists the sentinels read by the next screen.
type SentinelWriter interface {
	Set(ctx context.Context, key, value string) error
}

// Scanner is the capability the page awaits while scanning.
type Scanner interface {
	Scan(ctx context.Context, in scanner.Input) (*scanner.Result, error)
}
