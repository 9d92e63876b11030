package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/nerrad567/gray-logic-operator/internal/console"
)

// Default settings applied when the Config leaves a field zero.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1400
	DefaultViewportHeight = 900
	DefaultArtifactsDir   = "artifacts"
)

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Config holds the settings for one browser session.
type Config struct {
	BaseURL          string
	StorageStatePath string
	ArtifactsDir     string
	Viewport         Viewport
	Headless         bool
	Timeout          time.Duration

	// Strategies overrides DefaultStrategies when non-empty.
	Strategies *Strategies

	// Logger receives chromedp diagnostics at debug level. May be nil.
	Logger console.Logger
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = DefaultViewportWidth
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = DefaultViewportHeight
	}
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = DefaultArtifactsDir
	}
	if c.Strategies == nil {
		s := DefaultStrategies()
		c.Strategies = &s
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Session drives one browser tab through the console UI.
//
// Thread Safety: a Session serves one operation at a time.
type Session struct {
	cfg         Config
	strategies  Strategies
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      console.Logger
	now         func() time.Time
}

// Open starts a browser, restores the stored session state when present, and
// returns the ready session. The browser lives until Close, independently of
// ctx; ctx bounds only the start-up.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNoBaseURL
	}
	cfg.applyDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	logf := func(format string, args ...any) {
		cfg.Logger.Debug("chromedp", "detail", fmt.Sprintf(format, args...))
	}
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf), chromedp.WithErrorf(logf))

	s := &Session{
		cfg:         cfg,
		strategies:  *cfg.Strategies,
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      cfg.Logger,
		now:         time.Now,
	}

	// The first Run allocates the browser and must not carry a deadline:
	// expiry of that context would kill the process.
	if err := chromedp.Run(tab); err != nil {
		s.Close() //nolint:errcheck // start-up already failed
		return nil, fmt.Errorf("%w: %w", ErrBrowserStart, err)
	}

	if cfg.StorageStatePath != "" {
		if err := s.restoreState(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.Close() //nolint:errcheck // restore already failed
			return nil, err
		}
	}

	return s, nil
}

// Close shuts the tab and the browser process.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// bound derives a context for one chromedp call from the tab context. It
// expires after the session timeout or the caller's deadline, whichever is
// first, and is cancelled with the caller's context.
func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// run executes actions under bound and maps an expired wait to ErrTimeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done := s.bound(ctx)
	defer done()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", console.ErrTimeout, err)
	}
	return err
}

// Home implements console.Session.
func (s *Session) Home(ctx context.Context) error {
	return s.run(ctx,
		chromedp.Navigate(s.cfg.BaseURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// find returns the first node matched by any of the locators, or nil.
func (s *Session) find(ctx context.Context, locators []Locator, text string) (*cdp.Node, Locator, error) {
	for _, loc := range locators {
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(loc.Query(text), &nodes, loc.by(), chromedp.AtLeast(0))); err != nil {
			return nil, loc, err
		}
		if len(nodes) > 0 {
			return nodes[0], loc, nil
		}
	}
	return nil, Locator{}, nil
}

// Locate implements console.Session.
func (s *Session) Locate(ctx context.Context, name string) (bool, error) {
	node, loc, err := s.find(ctx, s.strategies.Point, name)
	if err != nil {
		return false, err
	}
	if node != nil {
		s.logger.Debug("point located", "name", name, "strategy", loc.Name)
	}
	return node != nil, nil
}

// OpenDialog implements console.Session.
func (s *Session) OpenDialog(ctx context.Context, name string) error {
	node, _, err := s.find(ctx, s.strategies.Point, name)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNotVisible, name)
	}
	if err := s.run(ctx,
		chromedp.MouseClickNode(node),
		chromedp.WaitVisible(s.strategies.dialogSelector(), chromedp.ByQuery),
	); err != nil {
		return err
	}

	// Substring locators can land on a neighbouring row (360.005-JV40_Pos_SP);
	// the dialog has to name the point exactly.
	if err := s.run(ctx, chromedp.WaitVisible(s.strategies.dialogPoint(name), chromedp.BySearch)); err != nil {
		if errors.Is(err, console.ErrTimeout) {
			return fmt.Errorf("%w: dialog does not show %q", console.ErrWrongPoint, name)
		}
		return err
	}
	return nil
}

// ReadValue implements console.Session.
func (s *Session) ReadValue(ctx context.Context) (string, error) {
	sel, err := s.firstInput(ctx)
	if err != nil {
		return "", err
	}
	var value string
	if err := s.run(ctx, chromedp.Value(sel, &value, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return value, nil
}

// waitInput waits until any input strategy is visible in the open dialog.
func (s *Session) waitInput(ctx context.Context) error {
	err := s.run(ctx, chromedp.WaitVisible(s.strategies.inputSelector(), chromedp.ByQuery))
	if errors.Is(err, console.ErrTimeout) {
		return fmt.Errorf("%w: %v", console.ErrNoInput, err)
	}
	return err
}

// firstInput returns the scoped selector of the first input strategy present
// in the open dialog.
func (s *Session) firstInput(ctx context.Context) (string, error) {
	if err := s.waitInput(ctx); err != nil {
		return "", err
	}
	for _, inner := range s.strategies.Input {
		sel := s.strategies.inDialog(inner)
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
			return "", err
		}
		if len(nodes) > 0 {
			return sel, nil
		}
	}
	return "", console.ErrNoInput
}

// EnterValue implements console.Session.
func (s *Session) EnterValue(ctx context.Context, value string) error {
	if err := s.enableForce(ctx); err != nil {
		return err
	}
	if err := s.waitInput(ctx); err != nil {
		return err
	}

	for _, inner := range s.strategies.Input {
		sel := s.strategies.inDialog(inner)
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
			return err
		}
		if len(nodes) == 0 {
			continue
		}

		var got string
		err := s.run(ctx,
			chromedp.Clear(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, value, chromedp.ByQuery),
			chromedp.Value(sel, &got, chromedp.ByQuery),
		)
		if err != nil {
			return err
		}
		if strings.TrimSpace(got) == value {
			return nil
		}
		s.logger.Debug("input strategy rejected value", "selector", inner, "value", value, "got", got)
	}
	return console.ErrNoInput
}

// enableForce clicks the force toggle when the dialog has one.
func (s *Session) enableForce(ctx context.Context) error {
	node, _, err := s.find(ctx, s.strategies.ForceToggle, "Force")
	if err != nil || node == nil {
		return err
	}
	if _, checked := node.Attribute("checked"); checked {
		return nil
	}
	return s.run(ctx, chromedp.MouseClickNode(node))
}

// button returns the first of labels present in the dialog. It fails with
// ErrButtonDisabled when that button is disabled.
func (s *Session) button(ctx context.Context, labels []string) (*cdp.Node, error) {
	for _, label := range labels {
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(s.strategies.dialogButton(label), &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			continue
		}
		if _, disabled := nodes[0].Attribute("disabled"); disabled {
			return nil, fmt.Errorf("%w: %s", ErrButtonDisabled, label)
		}
		return nodes[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoButton, strings.Join(labels, "/"))
}

// clickButton clicks the first of labels present in the dialog.
func (s *Session) clickButton(ctx context.Context, labels []string) error {
	node, err := s.button(ctx, labels)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.MouseClickNode(node))
}

// Release implements console.Session.
func (s *Session) Release(ctx context.Context) error {
	return s.clickButton(ctx, s.strategies.Unforce)
}

// CanConfirm implements console.Session.
func (s *Session) CanConfirm(ctx context.Context) error {
	_, err := s.button(ctx, s.strategies.Confirm)
	if errors.Is(err, ErrButtonDisabled) || errors.Is(err, ErrNoButton) {
		return fmt.Errorf("%w: %w", console.ErrCannotConfirm, err)
	}
	return err
}

// Confirm implements console.Session.
func (s *Session) Confirm(ctx context.Context) error {
	if err := s.clickButton(ctx, s.strategies.Confirm); err != nil {
		return err
	}
	return s.run(ctx, chromedp.WaitNotPresent(s.strategies.dialogSelector(), chromedp.ByQuery))
}

// Dismiss implements console.Session.
func (s *Session) Dismiss(ctx context.Context) error {
	if err := s.clickButton(ctx, s.strategies.Cancel); err != nil {
		// Fall back to the keyboard when the dialog has no cancel button.
		if err := s.run(ctx, chromedp.KeyEvent(kb.Escape)); err != nil {
			return err
		}
	}
	return s.run(ctx, chromedp.WaitNotPresent(s.strategies.dialogSelector(), chromedp.ByQuery))
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Screenshot implements console.Session. The reference is the file path of
// a full-page PNG under the artifacts directory.
func (s *Session) Screenshot(ctx context.Context, label string) (string, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.cfg.ArtifactsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifacts dir: %w", err)
	}
	name := fmt.Sprintf("failure_%s_%d.png", unsafeLabel.ReplaceAllString(label, "_"), s.now().Unix())
	path := filepath.Join(s.cfg.ArtifactsDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil { //nolint:gosec // artifacts are not secret
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

var _ console.Session = (*Session)(nil)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
