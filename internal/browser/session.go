package browser

import (
	"context"
	"fmt"

	"calbook/internal/config"
	"calbook/internal/domain"
	"calbook/internal/retry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Factory launches one fresh Chrome per booking. Sessions are never shared or
// reused; a clean profile per attempt keeps cookie/storage state isolated.
type Factory struct {
	cfg    config.BrowserConfig
	sel    Selectors
	retry  retry.Policy
	logger *zerolog.Logger
}

func NewFactory(cfg config.BrowserConfig, sel Selectors, retryPolicy retry.Policy, logger *zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		sel:    sel,
		retry:  retryPolicy,
		logger: logger,
	}
}

func (f *Factory) NewAutomator(ctx context.Context) (domain.Automator, error) {
	return newSession(ctx, f.cfg, f.sel, f.retry, f.logger)
}

// Session owns one browser instance and one page for the lifetime of a single
// booking attempt.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cfg      config.BrowserConfig
	sel      Selectors
	retry    retry.Policy
	logger   *zerolog.Logger
}

func newSession(ctx context.Context, cfg config.BrowserConfig, sel Selectors, retryPolicy retry.Policy, logger *zerolog.Logger) (*Session, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ChromePath != "" {
		l = l.Bin(cfg.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn().Err(err).Msg("failed to set viewport")
	}

	return &Session{
		launcher: l,
		browser:  b,
		page:     page,
		cfg:      cfg,
		sel:      sel,
		retry:    retryPolicy,
		logger:   logger,
	}, nil
}

// Close tears the whole browser down. Safe to call more than once.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}

	err := s.browser.Close()
	s.browser = nil

	if s.launcher != nil {
		s.launcher.Cleanup()
		s.launcher = nil
	}

	return err
}
