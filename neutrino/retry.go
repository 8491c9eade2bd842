package neutrino

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/lukehollenback/neutrino/exchange"
)

//
// hintedBackOff stretches the next wait of the wrapped policy to the exchange's suggested delay
// whenever the last failure carried one.
//
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (o *hintedBackOff) NextBackOff() time.Duration {
	next := o.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}

	if o.hint > next {
		next = o.hint
	}

	o.hint = 0

	return next
}

func (o *hintedBackOff) Reset() {
	o.hint = 0
	o.BackOff.Reset()
}

//
// clockTimer drives backoff waits from the injected clock.
//
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (o *clockTimer) Start(duration time.Duration) {
	if o.timer == nil {
		o.timer = o.clock.Timer(duration)
	} else {
		o.timer.Reset(duration)
	}
}

func (o *clockTimer) Stop() {
	if o.timer != nil {
		o.timer.Stop()
	}
}

func (o *clockTimer) C() <-chan time.Time {
	return o.timer.C
}

//
// policy builds a fresh retry policy for a single operation.
//
func (o *Neutrino) policy(ctx context.Context) (*hintedBackOff, backoff.BackOff) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.cfg.RetryInitialInterval
	exp.MaxInterval = o.cfg.RetryMaxInterval
	exp.MaxElapsedTime = 0
	exp.Clock = o.clock
	exp.Reset()

	hinted := &hintedBackOff{BackOff: exp}

	return hinted, backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(o.cfg.RetryAttempts)), ctx)
}

//
// retry runs the provided operation until it succeeds, fails with anything other than a
// TransientError, or runs out of attempts. Waits follow the exponential policy but are never
// shorter than the Retry-After that the exchange suggested.
//
func retry[T any](ctx context.Context, o *Neutrino, op string, fn func() (T, error)) (T, error) {
	hinted, policy := o.policy(ctx)
	attempt := 0

	operation := func() (T, error) {
		attempt++

		ret, err := fn()
		if err == nil {
			return ret, nil
		}

		if !exchange.IsTransient(err) {
			return ret, backoff.Permanent(err)
		}

		if wait, ok := exchange.RetryAfter(err); ok {
			hinted.hint = wait
		}

		return ret, err
	}

	notify := func(err error, wait time.Duration) {
		logger.Printf("Attempt %d of %s failed. Retrying in %s. (Error: %s)", attempt, op, wait, err)
	}

	return backoff.RetryNotifyWithTimerAndData[T](operation, policy, notify, o.newTimer())
}
