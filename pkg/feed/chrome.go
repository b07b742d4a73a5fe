package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/errors"
	"rainrelay/internal/metrics"
	"rainrelay/internal/models"
	"rainrelay/pkg/circuitbreaker"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const readySelector = ".chat-messages"

// ChromeProvider keeps one headless Chrome tab open on the feed page. The browser is
// launched lazily and relaunched after a failed evaluation.
type ChromeProvider struct {
	config  models.FeedConfig
	logger  *logrus.Logger
	breaker *circuitbreaker.CircuitBreaker

	mu            sync.Mutex
	started       bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// evaluate is replaced in tests.
	evaluate func(ctx context.Context) (pageState, error)
}

func NewChromeProvider(config models.FeedConfig, logger *logrus.Logger) *ChromeProvider {
	maxFailures := config.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = constants.DefaultBreakerFailures
	}
	resetSec := config.BreakerResetSec
	if resetSec <= 0 {
		resetSec = constants.DefaultBreakerResetSec
	}

	p := &ChromeProvider{
		config: config,
		logger: logger,
		breaker: circuitbreaker.NewWithLogger("feed", uint32(maxFailures), time.Duration(resetSec)*time.Second, logger).
			WithHalfOpenCalls(constants.DefaultCircuitHalfOpenMaxCall).
			OnStateChange(func(name string, _, to circuitbreaker.State) {
				metrics.IncrementCounter("circuit_breaker_transitions_total",
					map[string]string{"breaker": name, "state": to.String()}, "Circuit breaker state transitions")
			}),
	}
	p.evaluate = p.evaluateInBrowser
	return p
}

// Snapshot evaluates the feed page once. Failures and open-breaker rejections are
// returned as FeedUnavailable errors.
func (p *ChromeProvider) Snapshot(ctx context.Context) (*models.FeedSnapshot, error) {
	var state pageState
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		state, err = p.evaluate(ctx)
		return err
	})
	if err != nil {
		return nil, errors.NewFeedUnavailableError(err)
	}
	return state.toSnapshot(), nil
}

// BreakerState exposes the breaker for the status endpoint.
func (p *ChromeProvider) BreakerState() circuitbreaker.State {
	return p.breaker.GetState()
}

func (p *ChromeProvider) evaluateInBrowser(ctx context.Context) (pageState, error) {
	browserCtx, err := p.ensureStarted()
	if err != nil {
		return pageState{}, err
	}

	runCtx, cancel := scopedTo(browserCtx, ctx)
	defer cancel()

	var state pageState
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotScript, &state)); err != nil {
		if ctx.Err() == nil {
			p.logger.WithError(err).Warn("Feed evaluation failed, browser will be relaunched")
			p.shutdown()
		}
		return pageState{}, fmt.Errorf("failed to evaluate feed page: %w", err)
	}
	return state, nil
}

// scopedTo derives a context from the browser context that also ends when caller ends.
func scopedTo(browserCtx, caller context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := caller.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(browserCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(browserCtx)
	}
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *ChromeProvider) ensureStarted() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return p.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.IsHeadless()),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1920, 1080),
	)
	if p.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.config.UserAgent))
	}
	if p.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(p.config.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(p.logger.Debugf))

	// The first Run allocates the browser; it must not run under a timeout context
	// or the browser would die with it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(browserCtx, p.seconds(p.config.PageLoadTimeoutSec, constants.DefaultPageLoadTimeout))
	err := chromedp.Run(loadCtx, chromedp.Navigate(p.config.SiteURL))
	cancel()
	if err == nil {
		readyCtx, cancel := context.WithTimeout(browserCtx, p.seconds(p.config.ReadyTimeoutSec, constants.DefaultReadyTimeoutSec))
		err = chromedp.Run(readyCtx, chromedp.WaitReady(readySelector, chromedp.ByQuery))
		cancel()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("feed page did not become ready: %w", err)
	}

	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.started = true

	p.logger.WithField("url", p.config.SiteURL).Info("Feed page loaded")
	return browserCtx, nil
}

func (p *ChromeProvider) seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func (p *ChromeProvider) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.browserCancel()
	p.allocCancel()
	p.started = false
	p.browserCtx = nil
}

// Close stops the browser.
func (p *ChromeProvider) Close() error {
	p.shutdown()
	return nil
}
