package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Attempt is one provider call made by Failover.
type Attempt struct {
	Ref       ProviderRef
	Info      ProviderInfo
	Usage     Usage
	Latency   time.Duration
	Err       error
	ErrorType ErrorType
}

// Failover walks the configured providers in preference order. Rate limits
// and transient errors are retried twice with backoff; quota errors park the
// provider for the cooldown and other failures park it for a minute. A
// context-length error is returned at once since no provider will accept the
// same request.
type Failover struct {
	m        *Manager
	cooldown time.Duration
	log      *zap.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error

	mu            sync.Mutex
	disabledUntil map[int]time.Time
}

func NewFailover(m *Manager, cooldown time.Duration, log *zap.Logger) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &Failover{
		m:             m,
		cooldown:      cooldown,
		log:           log,
		now:           time.Now,
		sleep:         sleepCtx,
		disabledUntil: map[int]time.Time{},
	}
}

func (f *Failover) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, []Attempt, error) {
	order := f.m.PreferredLLMOrder()
	n := len(order)
	if n == 0 {
		return GenerateResponse{}, ProviderInfo{}, nil, errors.New("no llm providers configured")
	}
	var (
		attempts []Attempt
		lastErr  error
	)
	retries := map[int]int{}
	for attempt := 0; attempt < n*4; attempt++ {
		if err := ctx.Err(); err != nil {
			return GenerateResponse{}, ProviderInfo{}, attempts, err
		}
		idx := order[attempt%n]
		if f.isDisabled(idx) {
			continue
		}
		p, ref := f.m.LLMProviderByIndex(idx)
		start := f.now()
		resp, info, err := p.Generate(ctx, req)
		at := Attempt{Ref: ref, Info: info, Usage: resp.Usage, Latency: f.now().Sub(start), Err: err}
		if err == nil {
			attempts = append(attempts, at)
			return resp, info, attempts, nil
		}
		if ctx.Err() != nil {
			return GenerateResponse{}, info, append(attempts, at), ctx.Err()
		}
		lastErr = err
		at.ErrorType = ClassifyError(err)
		attempts = append(attempts, at)
		retries[idx]++
		f.log.Warn("llm call failed",
			zap.String("provider", ref.Raw), zap.String("operation", req.Operation),
			zap.String("error_type", string(at.ErrorType)), zap.Int("retry", retries[idx]), zap.Error(err))
		switch at.ErrorType {
		case ErrorQuota:
			f.disable(idx, f.cooldown)
		case ErrorRate:
			if retries[idx] <= 2 {
				if err := f.sleep(ctx, time.Duration(retries[idx]*2)*time.Second); err != nil {
					return GenerateResponse{}, info, attempts, err
				}
				attempt--
			} else {
				f.disable(idx, 2*time.Minute)
			}
		case ErrorTransient:
			if retries[idx] <= 2 {
				if err := f.sleep(ctx, time.Duration(retries[idx])*time.Second); err != nil {
					return GenerateResponse{}, info, attempts, err
				}
				attempt--
			}
		case ErrorContext:
			return GenerateResponse{}, info, attempts, err
		default:
			f.disable(idx, time.Minute)
		}
	}
	if lastErr == nil {
		return GenerateResponse{}, ProviderInfo{}, attempts, errors.New("all llm providers exhausted")
	}
	return GenerateResponse{}, ProviderInfo{}, attempts, fmt.Errorf("all llm providers exhausted: %w", lastErr)
}

func (f *Failover) isDisabled(idx int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.disabledUntil[idx]
	if !ok {
		return false
	}
	return f.now().Before(until)
}

func (f *Failover) disable(idx int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabledUntil[idx] = f.now().Add(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
