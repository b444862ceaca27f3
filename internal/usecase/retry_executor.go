package usecase

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/domain/model"
)

// RateLimiter is the reservation port the executor consults before every
// external call. One implementation is shared process-wide per action kind.
type RateLimiter interface {
	Reserve(action string) (allowed bool, retryAfter time.Duration)
}

// CallFunc performs one attempt of the external side effect.
type CallFunc func(ctx context.Context) error

// RetryExecutor wraps a single external call with rate limiting,
// classification and bounded retries. It is the only place in the engine
// that sleeps or retries; the batch runner never does either directly.
type RetryExecutor struct {
	limiter    RateLimiter
	classifier *ErrorClassifier
	cfg        config.RetryConfig
	log        *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error // injectable for tests
}

func NewRetryExecutor(limiter RateLimiter, classifier *ErrorClassifier, cfg config.RetryConfig, logger *zerolog.Logger) *RetryExecutor {
	execLog := logger.With().Str("component", "RetryExecutor").Logger()
	return &RetryExecutor{
		limiter:    limiter,
		classifier: classifier,
		cfg:        cfg,
		log:        &execLog,
		sleep:      sleepCtx,
	}
}

// Execute runs fn under the action's rate budget and returns the target's
// terminal outcome plus the last raw error for failure outcomes.
//
// Permanent classifications short-circuit after a single attempt. Throttled
// failures wait the provider's hint (or the configured default) without
// consuming extra backoff. Everything else backs off exponentially with
// jitter until MaxAttempts is exhausted.
func (e *RetryExecutor) Execute(ctx context.Context, action string, fn CallFunc) (model.Outcome, error) {
	var lastErr error
	lastClass := ClassUnknown

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		outcome, err := e.reserve(ctx, action)
		if err != nil {
			return model.OutcomeTransient, err
		}
		if outcome != "" {
			return outcome, lastErr
		}

		err = fn(ctx)
		if err == nil {
			return model.OutcomeSucceeded, nil
		}
		lastErr = err

		cls := e.classifier.Classify(err)
		lastClass = cls.Class
		switch cls.Class {
		case ClassPermanentDuplicate:
			return model.OutcomeAlreadyPresent, nil
		case ClassPermanentBlocked:
			return model.OutcomeBlocked, err
		case ClassPermanentNotFound:
			return model.OutcomeNotFound, err
		case ClassTransientThrottled:
			wait := cls.WaitHint
			if wait <= 0 {
				wait = e.cfg.DefaultWaitHint
			}
			e.log.Debug().Str("action", action).Dur("wait", wait).Int("attempt", attempt+1).Msg("provider throttled, honoring wait hint")
			if err := e.sleep(ctx, wait); err != nil {
				return model.OutcomeTransient, err
			}
		default:
			wait := e.backoff(attempt)
			e.log.Debug().Str("action", action).Dur("wait", wait).Int("attempt", attempt+1).Err(err).Msg("transient failure, backing off")
			if err := e.sleep(ctx, wait); err != nil {
				return model.OutcomeTransient, err
			}
		}
	}

	if lastClass == ClassUnknown {
		return model.OutcomeUnknown, lastErr
	}
	return model.OutcomeTransient, lastErr
}

// reserve loops until the limiter admits the call. A wait longer than
// MaxRateWait abandons the item instead of blocking the whole job.
func (e *RetryExecutor) reserve(ctx context.Context, action string) (model.Outcome, error) {
	for {
		allowed, retryAfter := e.limiter.Reserve(action)
		if allowed {
			return "", nil
		}
		if retryAfter > e.cfg.MaxRateWait {
			e.log.Warn().Str("action", action).Dur("retry_after", retryAfter).Msg("rate window wait exceeds cap, abandoning item")
			return model.OutcomeRateAbandoned, nil
		}
		if err := e.sleep(ctx, retryAfter); err != nil {
			return "", err
		}
	}
}

func (e *RetryExecutor) backoff(attempt int) time.Duration {
	d := e.cfg.BackoffBase << uint(attempt)
	if d > e.cfg.BackoffCap || d <= 0 {
		d = e.cfg.BackoffCap
	}
	// up to 25% jitter so synchronized workers don't re-burst together
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
