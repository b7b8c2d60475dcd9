// Package live feeds the dom mirror from a real browser. It drives Chrome
// through go-rod, snapshots the page into a Document, injects a
// MutationObserver, and replays forwarded mutations through the mirror's
// mutators so detection and monitoring never talk to the browser directly.
package live

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hireloop/formsense/dom"
)

//go:embed observer.js
var observerJS []byte

const bindingName = "__formsense_binding"

// Config configures a browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local headless Chrome.
	RemoteURL string
	// Stealth opens pages with bot-detection countermeasures applied.
	Stealth bool
	// NavTimeout bounds navigation and page load. Default: 30s.
	NavTimeout time.Duration
	// BlockResources lists resource types to drop before they load
	// (images, fonts, media, stylesheets). Empty blocks nothing.
	BlockResources []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.BlockResources = normalizeResources(c.BlockResources)
}

// Session is one observed page: a Rod page plus its mirror document.
type Session struct {
	cfg     Config
	page    *rod.Page
	browser *rod.Browser
	lnch    *launcher.Launcher
	doc     *dom.Document
	cancel  context.CancelFunc
}

// Open connects to (or launches) Chrome, navigates to pageURL, snapshots
// the DOM into a mirror document, and starts forwarding mutations.
func Open(ctx context.Context, pageURL string, cfg Config) (*Session, error) {
	cfg.defaults()

	s := &Session{cfg: cfg}
	if err := s.connect(); err != nil {
		return nil, err
	}

	page, err := s.newPage()
	if err != nil {
		s.teardown()
		return nil, err
	}
	s.page = page

	if len(cfg.BlockResources) > 0 {
		blockResources(page, cfg.BlockResources)
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.teardown()
		return nil, fmt.Errorf("live: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("wait load timeout", "url", pageURL, "err", err)
	}
	// SPA job boards keep rendering after load; settle before snapshotting.
	if err := page.Context(navCtx).WaitDOMStable(300*time.Millisecond, 0); err != nil {
		cfg.Logger.Warn("wait settle timeout", "url", pageURL, "err", err)
	}

	if err := s.snapshot(ctx, pageURL); err != nil {
		s.teardown()
		return nil, err
	}

	obsCtx, obsCancel := context.WithCancel(context.Background())
	s.cancel = obsCancel
	if err := s.inject(obsCtx); err != nil {
		s.teardown()
		return nil, err
	}

	cfg.Logger.Info("session opened", "url", pageURL)
	return s, nil
}

func (s *Session) connect() error {
	if s.cfg.RemoteURL != "" {
		b := rod.New().ControlURL(s.cfg.RemoteURL)
		if err := b.Connect(); err != nil {
			return fmt.Errorf("live: connect %s: %w", s.cfg.RemoteURL, err)
		}
		s.browser = b
		return nil
	}

	l := launcher.New().Headless(true)
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("live: launch chrome: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("live: connect launched chrome: %w", err)
	}
	s.lnch = l
	s.browser = b
	return nil
}

func (s *Session) newPage() (*rod.Page, error) {
	if s.cfg.Stealth {
		page, err := stealth.Page(s.browser)
		if err != nil {
			return nil, fmt.Errorf("live: create stealth page: %w", err)
		}
		return page, nil
	}
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("live: create page: %w", err)
	}
	return page, nil
}

// snapshot serialises the full page and rebuilds the mirror document.
func (s *Session) snapshot(ctx context.Context, pageURL string) error {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return fmt.Errorf("live: get DOM: %w", err)
	}
	doc, err := dom.ParseString(res.Value.Str(), pageURL)
	if err != nil {
		return fmt.Errorf("live: parse snapshot: %w", err)
	}
	s.doc = doc
	return nil
}

// inject sets up the JS→Go binding and installs the MutationObserver.
func (s *Session) inject(ctx context.Context) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(s.page); err != nil {
		s.cfg.Logger.Warn("addBinding failed (may already exist)", "err", err)
	}
	go s.listenBinding(ctx)

	if _, err := s.page.Eval(string(observerJS)); err != nil {
		return fmt.Errorf("live: inject observer: %w", err)
	}
	return nil
}

// listenBinding receives mutation batches from the injected observer and
// replays them onto the mirror.
func (s *Session) listenBinding(ctx context.Context) {
	s.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		recs, err := decodeBatch(e.Payload)
		if err != nil {
			s.cfg.Logger.Warn("bad mutation batch", "err", err)
			return
		}
		for _, rec := range recs {
			if err := applyRecord(s.doc, rec); err != nil {
				s.cfg.Logger.Debug("mutation dropped", "err", err)
			}
		}
	})()
}

// Document returns the mirror document. Detection and monitoring run
// against it.
func (s *Session) Document() *dom.Document { return s.doc }

// StampBounds reads bounding boxes for every input-like element from the
// page and stamps them onto the mirror as geometry hints.
func (s *Session) StampBounds(ctx context.Context) error {
	res, err := s.page.Context(ctx).Eval(`() => {
		const out = [];
		const xpathOf = (el) => {
			const parts = [];
			for (let n = el; n && n.nodeType === 1; n = n.parentNode) {
				let idx = 1;
				for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
					if (s.tagName === n.tagName) idx++;
				}
				parts.unshift(n.tagName.toLowerCase() + '[' + idx + ']');
			}
			return '/' + parts.join('/');
		};
		for (const el of document.querySelectorAll('input, select, textarea')) {
			const r = el.getBoundingClientRect();
			out.push({xpath: xpathOf(el), rect: [r.x, r.y, r.width, r.height].join(',')});
		}
		return out;
	}`)
	if err != nil {
		return fmt.Errorf("live: read bounds: %w", err)
	}

	var entries []struct {
		XPath string `json:"xpath"`
		Rect  string `json:"rect"`
	}
	if err := res.Value.Unmarshal(&entries); err != nil {
		return fmt.Errorf("live: parse bounds: %w", err)
	}
	for _, e := range entries {
		if n := s.doc.ByXPath(e.XPath); n != nil {
			n.SetAttr("data-fs-bounds", e.Rect)
		}
	}
	return nil
}

// Resync re-snapshots the body and replaces the mirror's body children.
// Use after SPA navigations the observer cannot express incrementally.
func (s *Session) Resync(ctx context.Context) error {
	res, err := s.page.Context(ctx).Eval(`() => document.body.innerHTML`)
	if err != nil {
		return fmt.Errorf("live: resync: %w", err)
	}
	body := s.doc.Query("body")
	if body == nil {
		return fmt.Errorf("live: resync: mirror has no body")
	}
	if _, err := body.SetHTML(res.Value.Str()); err != nil {
		return fmt.Errorf("live: resync: %w", err)
	}
	return nil
}

// Close stops observation and shuts the browser down (local launches
// only; remote instances are left running).
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.teardown()
}

func (s *Session) teardown() {
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil && s.cfg.RemoteURL == "" {
		s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
