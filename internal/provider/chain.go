package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"activityplanner/internal/domain"
)

const defaultCooldown = time.Minute

// Chain sends each request to the first provider that is not cooling down
// after a recent failure. When every member is cooling down, all are tried
// in order anyway.
type Chain struct {
	members  []domain.Provider
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	coolUntil map[int]time.Time // member index -> usable again at
}

func NewChain(members []domain.Provider, cooldown time.Duration, logger *slog.Logger) *Chain {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		members:   members,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
		coolUntil: make(map[int]time.Time),
	}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.members))
	for i, p := range c.members {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// order returns member indexes: rested members first, then benched ones.
func (c *Chain) order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var rested, benched []int
	for i := range c.members {
		if until, ok := c.coolUntil[i]; ok && now.Before(until) {
			benched = append(benched, i)
			continue
		}
		rested = append(rested, i)
	}
	return append(rested, benched...)
}

func (c *Chain) mark(i int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.coolUntil[i] = c.now().Add(c.cooldown)
	} else {
		delete(c.coolUntil, i)
	}
}

func (c *Chain) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var errs []error
	for _, i := range c.order() {
		p := c.members[i]
		resp, err := p.Chat(ctx, req)
		if err == nil {
			c.mark(i, false)
			if len(errs) > 0 {
				c.logger.Info("llm fallback answered", "provider", p.Name(), "failed", len(errs))
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.mark(i, true)
		c.logger.Warn("llm provider failed", "provider", p.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, fmt.Errorf("all llm providers failed: %w", errors.Join(errs...))
}
