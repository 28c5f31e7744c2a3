package notification

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/platform/sms"
)

// Delivery is the handle returned by every dispatch call. The caller may
// ignore it, wait on Done, or attach completion observers; it never has to
// block on it.
type Delivery struct {
	id     string
	logger zerolog.Logger

	done chan struct{}

	mu        sync.Mutex
	outcome   sms.Outcome
	completed bool
	observers []func(sms.Outcome)
}

func newDelivery(id string, logger zerolog.Logger) *Delivery {
	return &Delivery{
		id:     id,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// ID returns the delivery identifier assigned at dispatch time.
func (d *Delivery) ID() string { return d.id }

// Done is closed when the delivery has completed, successfully or not.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Outcome blocks until the delivery completes and returns its outcome.
// Event-handler goroutines must not call this; they should attach an
// observer with OnComplete instead.
func (d *Delivery) Outcome() sms.Outcome {
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome
}

// OnComplete attaches a completion observer. Observers run on pool-managed
// goroutines, never on the goroutine that called dispatch. A panic inside an
// observer is recovered and logged, never propagated. Attaching after
// completion invokes the observer immediately on a fresh goroutine.
func (d *Delivery) OnComplete(fn func(sms.Outcome)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	if !d.completed {
		d.observers = append(d.observers, fn)
		d.mu.Unlock()
		return
	}
	out := d.outcome
	d.mu.Unlock()
	go d.invoke(fn, out)
}

// complete records the outcome and notifies observers. It runs on the pool
// goroutine that processed the dispatch. Completing twice is a programming
// error and the second outcome is dropped.
func (d *Delivery) complete(out sms.Outcome) {
	d.mu.Lock()
	if d.completed {
		d.mu.Unlock()
		return
	}
	d.completed = true
	d.outcome = out
	observers := d.observers
	d.observers = nil
	d.mu.Unlock()

	close(d.done)
	for _, fn := range observers {
		d.invoke(fn, out)
	}
}

func (d *Delivery) invoke(fn func(sms.Outcome), out sms.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("delivery_id", d.id).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("panic in completion observer")
		}
	}()
	fn(out)
}
