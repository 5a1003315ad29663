package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/session"
	"github.com/jwhalen/jobwatch/internal/utils"
)

// Selectors for the login form. The board renders its form inside web
// components, so the inputs are matched through their data-id wrappers.
const (
	usernameSelector = `[data-id="username"] input`
	passwordSelector = `[data-id="password"] input`
	signInSelector   = `rhcl-button[data-id="signIn"]`
	loginErrSelector = `div[role="alert"]`
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36 Edg/133.0.2782.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// Credentials are the login credentials for the gated job board.
type Credentials struct {
	Username string
	Password string
}

// Options controls how the login browser is driven.
type Options struct {
	LoginURL        string
	Headless        bool
	Timeout         time.Duration
	UserAgent       string
	RotateUserAgent bool
	// ScreenshotDir receives a diagnostic screenshot on timeout or error.
	// Empty disables screenshots.
	ScreenshotDir string
}

// Authenticator drives a browser through the interactive login flow to mint
// a fresh session. It does not distinguish transient automation errors from a
// rejected login: both surface as an error and the caller decides whether to
// retry.
type Authenticator struct {
	creds  Credentials
	opts   Options
	logger *zap.Logger
}

func NewAuthenticator(creds Credentials, opts Options, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Authenticator{
		creds:  creds,
		opts:   opts,
		logger: logger,
	}
}

// Login runs the full login flow and returns the captured cookie jar plus the
// user agent used. The browser and its context are released on every exit
// path.
func (a *Authenticator) Login(ctx context.Context) (*session.Session, error) {
	if a.creds.Username == "" || a.creds.Password == "" {
		return nil, errors.New("login credentials are not configured")
	}
	if strings.TrimSpace(a.opts.LoginURL) == "" {
		return nil, errors.New("login url is not configured")
	}

	userAgent := a.userAgent()
	a.logger.Info("starting login",
		zap.String("login_url", a.opts.LoginURL),
		zap.Bool("headless", a.opts.Headless),
		zap.String("user_agent", userAgent),
	)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.opts.Headless),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.IgnoreCertErrors,
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, a.opts.Timeout)
	defer cancelRun()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(a.opts.LoginURL),
		humanPause(2*time.Second, 4*time.Second),
		chromedp.WaitReady(usernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(usernameSelector, a.creds.Username, chromedp.ByQuery),
		humanPause(500*time.Millisecond, 1500*time.Millisecond),
		chromedp.WaitReady(passwordSelector, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, a.creds.Password, chromedp.ByQuery),
		humanPause(500*time.Millisecond, 1500*time.Millisecond),
		chromedp.WaitReady(signInSelector, chromedp.ByQuery),
		chromedp.Click(signInSelector, chromedp.ByQuery),
	)
	if err != nil {
		a.screenshot(browserCtx, "login_timeout")
		return nil, fmt.Errorf("driving login form: %w", err)
	}

	if msg := a.inlineLoginError(browserCtx); msg != "" {
		a.screenshot(browserCtx, "login_error")
		return nil, fmt.Errorf("login rejected: %s", msg)
	}

	if err := a.waitPostLogin(runCtx); err != nil {
		a.screenshot(browserCtx, "login_timeout")
		return nil, err
	}

	cookies, err := captureCookies(runCtx)
	if err != nil {
		a.screenshot(browserCtx, "login_error")
		return nil, fmt.Errorf("extracting cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("no cookies captured after login")
	}

	a.logger.Info("login successful", zap.Int("cookies", len(cookies)))

	return &session.Session{
		Cookies:   cookies,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (a *Authenticator) userAgent() string {
	if a.opts.RotateUserAgent {
		return defaultUserAgents[rand.N(len(defaultUserAgents))]
	}
	if a.opts.UserAgent != "" {
		return a.opts.UserAgent
	}
	return defaultUserAgents[0]
}

// inlineLoginError returns the text of a visible login error alert, if any.
// An empty result means no error was detected.
func (a *Authenticator) inlineLoginError(ctx context.Context) string {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var text string
	if err := chromedp.Run(checkCtx,
		chromedp.Text(loginErrSelector, &text, chromedp.ByQuery, chromedp.AtLeast(0)),
	); err != nil {
		a.logger.Debug("inline error probe failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// waitPostLogin polls the page location until it leaves the login route or
// the deadline passes. A timeout is logged and tolerated: some logins settle
// without a navigation, and cookie extraction decides the outcome.
func (a *Authenticator) waitPostLogin(ctx context.Context) error {
	deadline := time.Now().Add(a.opts.Timeout / 2)
	for {
		var loc string
		if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
			return fmt.Errorf("reading page location: %w", err)
		}
		if loc != "" && !strings.Contains(loc, "/login") {
			a.logger.Debug("post-login navigation detected", zap.String("location", loc))
			return nil
		}
		if time.Now().After(deadline) {
			a.logger.Warn("timed out waiting for post-login navigation, proceeding cautiously")
			return nil
		}
		if err := utils.WaitFor(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func captureCookies(ctx context.Context) ([]session.Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func (a *Authenticator) screenshot(ctx context.Context, name string) {
	if a.opts.ScreenshotDir == "" {
		return
	}

	ssCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(ssCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		a.logger.Warn("could not capture diagnostic screenshot", zap.Error(err))
		return
	}

	path := filepath.Join(a.opts.ScreenshotDir, fmt.Sprintf("%s_%s.png", name, time.Now().UTC().Format("20060102_150405")))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		a.logger.Warn("could not write diagnostic screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	a.logger.Info("diagnostic screenshot saved", zap.String("path", path))
}

// humanPause sleeps a random duration to mimic human interaction timing.
func humanPause(min, max time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return utils.WaitFor(ctx, utils.RandomBetween(min, max))
	})
}
