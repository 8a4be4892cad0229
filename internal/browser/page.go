package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// loginPage is the tab a login flow drives.
type loginPage interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Cookies() ([]*proto.NetworkCookie, error)
	Close() error
}

type rodPage struct {
	browser *rod.Browser
	page    *rod.Page
}

// newRodPage opens a blank tab with the configured user agent and the webdriver shim installed.
func (m *Manager) newRodPage(b *rod.Browser) (loginPage, error) {
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	p := &rodPage{browser: b, page: page}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.opts.UserAgent}); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if _, err := page.EvalOnNewDocument(hideWebdriver); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to install webdriver shim: %w", err)
	}
	return p, nil
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

func (p *rodPage) Location(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Cookies returns every cookie in the browser, not just those of the current page.
func (p *rodPage) Cookies() ([]*proto.NetworkCookie, error) {
	return p.browser.GetCookies()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
