package landing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/scanner"
)

// Deps are the collaborators a Page talks to.
type Deps struct {
	SessionID string
	Notifier  Notifier
	Navigator Navigator
	Sentinels SentinelWriter
	Scanner   Scanner
	Logger    *zap.Logger
}

// Snapshot is a consistent copy of the page state for rendering.
type Snapshot struct {
	URL          string `json:"url"`
	Scanning     bool   `json:"scanning"`
	State        string `json:"state"`
	UploadedFile bool   `json:"uploaded_file"`
}

// Page is one mounted instance of the landing page. It is safe for
// concurrent use.
type Page struct {
	deps   Deps
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	url      string
	state    State
	uploaded bool
	demo     bool
	pending  scanner.Input
	done     chan struct{}
}

// NewPage mounts a page in the Idle state.
func NewPage(deps Deps) *Page {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		deps:   deps,
		logger: logging.WithOperation(deps.Logger.Named("landing_page"), "landing.page", deps.SessionID),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetURL replaces the URL field.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// URL returns the current URL field.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Scanning reports whether a scan has been started and not yet navigated.
func (p *Page) Scanning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateScanning
}

// State returns the lifecycle state.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the state needed to render the page.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		URL:          p.url,
		Scanning:     p.state == StateScanning,
		State:        p.state.String(),
		UploadedFile: p.uploaded,
	}
}

// SelectFile records that the visitor picked a screenshot. The file is not
// validated or read.
func (p *Page) SelectFile(ctx context.Context, file FileRef) error {
	p.mu.Lock()
	if p.state >= StateNavigated {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.uploaded = true
	p.mu.Unlock()

	p.logger.Debug("file selected",
		zap.String("name", file.Name),
		zap.Int64("size", file.Size),
		zap.String("content_type", file.ContentType))
	p.deps.Notifier.Success(MsgUploaded)
	p.writeSentinel(ctx, SentinelUploadedFile)
	return nil
}

// SubmitScan starts a screenshot or URL scan. A URL scan with an empty URL
// is rejected with an error notification and ErrMissingURL.
func (p *Page) SubmitScan(kind scanner.Kind) error {
	if kind != scanner.KindScreenshot && kind != scanner.KindURL {
		return scanner.ErrUnknownKind
	}

	p.mu.Lock()
	switch p.state {
	case StateScanning:
		p.mu.Unlock()
		return ErrScanInProgress
	case StateNavigated, StateClosed:
		p.mu.Unlock()
		return ErrPageClosed
	}
	if kind == scanner.KindURL && p.url == "" {
		p.mu.Unlock()
		p.deps.Notifier.Error(MsgMissingURL)
		return ErrMissingURL
	}
	in := p.beginLocked(kind)
	done := p.done
	p.mu.Unlock()

	p.deps.Notifier.Info(MsgScanning)
	go p.await(in, done)
	return nil
}

// RunDemo writes the demoMode sentinel and starts a demo scan. If a scan is
// already pending no second one is started; its handoff is marked as demo.
func (p *Page) RunDemo(ctx context.Context) error {
	p.mu.Lock()
	if p.state >= StateNavigated {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.mu.Unlock()

	p.writeSentinel(ctx, SentinelDemoMode)

	p.mu.Lock()
	if p.state >= StateNavigated {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.demo = true
	var (
		in    scanner.Input
		start bool
	)
	if p.state == StateIdle {
		in = p.beginLocked(scanner.KindDemo)
		start = true
	}
	done := p.done
	p.mu.Unlock()

	p.deps.Notifier.Info(MsgDemo)
	if start {
		go p.await(in, done)
	}
	return nil
}

// Done is closed when the most recent scan finishes or is abandoned. Before
// any scan it returns an already closed channel.
func (p *Page) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.done
}

// Close unmounts the page. A pending scan is abandoned without navigating.
func (p *Page) Close() {
	p.mu.Lock()
	if p.state != StateNavigated {
		p.state = StateClosed
	}
	p.mu.Unlock()
	p.cancel()
}

func (p *Page) beginLocked(kind scanner.Kind) scanner.Input {
	p.state = StateScanning
	p.done = make(chan struct{})
	p.pending = scanner.Input{
		ScanID:       uuid.NewString(),
		SessionID:    p.deps.SessionID,
		Kind:         kind,
		URL:          p.url,
		UploadedFile: p.uploaded,
	}
	if kind != scanner.KindURL {
		p.pending.URL = ""
	}
	return p.pending
}

func (p *Page) await(in scanner.Input, done chan struct{}) {
	defer close(done)

	result, err := p.deps.Scanner.Scan(p.ctx, in)

	p.mu.Lock()
	if p.state != StateScanning {
		p.mu.Unlock()
		p.logger.Debug("scan abandoned", zap.String("scan_id", in.ScanID))
		return
	}
	if err != nil {
		p.state = StateIdle
		p.mu.Unlock()
		p.logger.Error("scan failed", zap.String("scan_id", in.ScanID), zap.Error(err))
		p.deps.Notifier.Error(MsgScanFailed)
		return
	}
	handoff := Handoff{
		ScanID:       result.ScanID,
		Kind:         in.Kind,
		URL:          in.URL,
		UploadedFile: p.uploaded,
		DemoMode:     p.demo,
		Result:       result,
		CompletedAt:  result.CompletedAt,
	}
	p.mu.Unlock()

	p.logger.Info("scan complete, navigating",
		zap.String("scan_id", handoff.ScanID),
		zap.String("kind", string(handoff.Kind)),
		zap.Bool("demo", handoff.DemoMode))

	// The navigator must hold the redirect before anyone can observe
	// StateNavigated and remount.
	p.deps.Navigator.Navigate(AnalysisPath, handoff)

	p.mu.Lock()
	if p.state == StateScanning {
		p.state = StateNavigated
	}
	p.mu.Unlock()
	p.cancel()
}

func (p *Page) writeSentinel(ctx context.Context, key string) {
	if err := p.deps.Sentinels.Set(ctx, key, SentinelValue); err != nil {
		p.logger.Warn("failed to write sentinel", zap.String("key", key), zap.Error(err))
	}
}
