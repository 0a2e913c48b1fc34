package tool

import (
	"context"
	"fmt"
	"time"

	"activityplanner/internal/domain"
)

// releaseTimeout bounds handle cleanup after the invocation context is done.
const releaseTimeout = 10 * time.Second

// withBrowser acquires a browser session, runs fn, and always closes the
// session. A close failure is reported through onRelease and never replaces
// fn's error.
func (p *Planner) withBrowser(ctx context.Context, fn func(domain.BrowserSession) error) error {
	session, err := p.browser.Start(ctx, p.caps.BrowserID)
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if cerr := session.Close(releaseCtx); cerr != nil {
			p.onRelease("browser", cerr)
		}
	}()
	return fn(session)
}

// withSandbox is withBrowser for code interpreter sessions.
func (p *Planner) withSandbox(ctx context.Context, fn func(domain.SandboxSession) error) error {
	session, err := p.sandbox.Start(ctx, p.caps.CodeInterpreterID)
	if err != nil {
		return fmt.Errorf("start code interpreter: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if cerr := session.Close(releaseCtx); cerr != nil {
			p.onRelease("code_interpreter", cerr)
		}
	}()
	return fn(session)
}
