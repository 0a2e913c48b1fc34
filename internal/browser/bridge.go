package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"activityplanner/internal/domain"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Bridge opens Chrome sessions, either against a remote CDP endpoint for the
// requested pool or a local headless instance.
type Bridge struct {
	endpoints map[string]string
	headless  bool
	maxChars  int
	logger    *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	Endpoints map[string]string // pool id -> CDP websocket URL
	Headless  bool
	MaxChars  int // page text budget per snapshot
	Logger    *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		endpoints: cfg.Endpoints,
		headless:  cfg.Headless,
		maxChars:  cfg.MaxChars,
		logger:    cfg.Logger,
	}
}

// Start opens a fresh browser context. Each session gets its own temporary
// profile, so concurrent sessions never share cookies or tabs.
func (b *Bridge) Start(ctx context.Context, poolID string) (domain.BrowserSession, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if ws, ok := b.endpoints[poolID]; ok && ws != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, ws)
		b.logger.Debug("browser session: remote", "pool", poolID)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
			chromedp.UserAgent(userAgent),
		)
		if !b.headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
		b.logger.Debug("browser session: local", "pool", poolID, "headless", b.headless)
	}

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	// Run with no actions launches the browser and attaches the tab.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &session{
		ctx:      taskCtx,
		cancel:   func() { taskCancel(); allocCancel() },
		maxChars: b.maxChars,
		release:  chromedp.Cancel,
	}, nil
}

type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	maxChars int
	once     sync.Once
	closeErr error

	// release ends the tab; chromedp.Cancel outside tests.
	release func(context.Context) error
}

// run executes actions on the session tab. ctx only gates entry; the tab's
// own context carries the invocation deadline.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, actions...)
}

func (s *session) Navigate(ctx context.Context, target string) error {
	if err := s.run(ctx, chromedp.Navigate(target), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return nil
}

func (s *session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *session) Fill(ctx context.Context, selector, value string, submit bool) error {
	actions := []chromedp.Action{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
	if submit {
		actions = append(actions,
			chromedp.Submit(selector, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// markElementsJS tags interactive elements with stable selectors the agent
// can refer back to.
const markElementsJS = `(() => {
	const out = {links: [], forms: []};
	let n = 0;
	const tag = el => { el.setAttribute('data-planner-ref', String(n)); return '[data-planner-ref="' + (n++) + '"]'; };
	document.querySelectorAll('a[href], button, input[type=submit]').forEach(el => {
		const text = (el.innerText || el.value || '').trim().replace(/\s+/g, ' ');
		if (!text || out.links.length >= 120) return;
		out.links.push({text: text.slice(0, 80), selector: tag(el)});
	});
	document.querySelectorAll('input[type=text], input[type=search], input:not([type]), textarea').forEach(el => {
		out.forms.push(el.id ? '#' + CSS.escape(el.id) : tag(el));
	});
	return out;
})()`

type markedElements struct {
	Links []domain.PageLink `json:"links"`
	Forms []string          `json:"forms"`
}

func (s *session) Snapshot(ctx context.Context) (*domain.PageSnapshot, error) {
	var (
		location, title, html string
		marked                markedElements
	)
	err := s.run(ctx,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.Evaluate(markElementsJS, &marked),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	return &domain.PageSnapshot{
		URL:   location,
		Title: strings.TrimSpace(title),
		Text:  truncate(readableText(html, location), s.maxChars),
		Links: marked.Links,
		Forms: marked.Forms,
	}, nil
}

// Close ends the tab and its allocator. A tab already torn down by the
// invocation deadline is not an error. Repeat calls return the first result.
func (s *session) Close(context.Context) error {
	s.once.Do(func() {
		// Cancelling the tab context closes the target; on a local allocator
		// it also shuts Chrome down and removes the temp profile.
		err := s.release(s.ctx)
		s.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
	})
	return s.closeErr
}

// readableText extracts the article text from html, falling back to the
// whole document text when readability finds no main content.
func readableText(html, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return collapseSpace(article.TextContent)
	}
	return collapseSpace(stripTags(html))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate clips s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + " ..."
}
