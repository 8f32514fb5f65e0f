package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
)

// Factory creates chromedp-backed sessions, one browser per job
type Factory struct {
	cfg common.AutomationConfig
	log arbor.ILogger
}

// NewFactory creates a session factory
func NewFactory(cfg common.AutomationConfig, log arbor.ILogger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

// NewSession returns an unstarted session bound to the given job
func (f *Factory) NewSession(jobID string) (interfaces.Session, error) {
	return &Session{
		jobID: jobID,
		cfg:   f.cfg,
		log:   f.log,
	}, nil
}

// Session is one exclusive Chrome instance driven over CDP. It is owned by a
// single worker goroutine; the mutex only guards Close racing a late call.
type Session struct {
	jobID string
	cfg   common.AutomationConfig
	log   arbor.ILogger

	mu          sync.Mutex
	browser     context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Start launches the browser and verifies it responds. The passed context
// bounds the launch, not the session lifetime.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return nil
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", s.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(s.cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// The target site localizes on Accept-Language; pin English so the
	// text-based element strategies see the labels they expect.
	testCtx, cancelTest := context.WithTimeout(browserCtx, s.cfg.PageLoadTimeoutDuration())
	defer cancelTest()
	err := chromedp.Run(testCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-GB,en;q=0.9"}),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		cancelCtx()
		cancelAlloc()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	s.browser = browserCtx
	s.cancelCtx = cancelCtx
	s.cancelAlloc = cancelAlloc

	s.log.Info().Str("job_id", s.jobID).Bool("headless", s.cfg.Headless).Msg("Browser session started")
	return nil
}

// run executes chromedp actions on the session browser, bounded by the
// caller's context without tearing the browser down on expiry.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	browser := s.browser
	s.mu.Unlock()
	if browser == nil {
		return fmt.Errorf("session not started")
	}

	runCtx, cancel := context.WithCancel(browser)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads the URL and waits for the body to be ready
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.PageLoadTimeoutDuration())
	defer cancel()
	return s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Page returns the top-level document as a widget context
func (s *Session) Page() interfaces.WidgetContext {
	return &widget{sess: s, frameIndex: -1}
}

// WidgetContext scans same-origin iframes for one hosting conversation
// markup and returns it, falling back to the page itself. Cross-origin
// frames are invisible to page script and are skipped.
func (s *Session) WidgetContext(ctx context.Context) (interfaces.WidgetContext, error) {
	var idx int
	err := s.run(ctx, chromedp.Evaluate(findWidgetFrameJS, &idx))
	if err != nil {
		return nil, err
	}
	return &widget{sess: s, frameIndex: idx}, nil
}

// Screenshot writes a full-page PNG capture to path
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
	if s.browser != nil {
		s.browser = nil
		s.log.Debug().Str("job_id", s.jobID).Msg("Browser session closed")
	}
	return nil
}

// findWidgetFrameJS returns the index of the first same-origin iframe whose
// document shows conversation markup, or -1 for the top document.
const findWidgetFrameJS = `(function() {
	var markers = "[class*='chat'], [class*='webchat'], [id*='webchat'], [data-testid*='chat'], [class*='message'], [class*='bubble']";
	var frames = document.querySelectorAll("iframe");
	for (var i = 0; i < frames.length; i++) {
		try {
			var doc = frames[i].contentDocument;
			if (doc && doc.querySelector(markers)) {
				return i;
			}
		} catch (e) {}
	}
	return -1;
})()`
