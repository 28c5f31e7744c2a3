package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/platform/sms"
)

func TestDelivery_OutcomeBlocksUntilComplete(t *testing.T) {
	d := newDelivery("d1", zerolog.Nop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.complete(sms.Outcome{OK: true, MessageID: "SM1"})
	}()

	out := d.Outcome()
	if !out.OK || out.MessageID != "SM1" {
		t.Errorf("Outcome() = %+v", out)
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done() not closed after completion")
	}
}

func TestDelivery_ObserverBeforeCompletion(t *testing.T) {
	d := newDelivery("d1", zerolog.Nop())

	got := make(chan sms.Outcome, 1)
	d.OnComplete(func(out sms.Outcome) { got <- out })

	d.complete(sms.Outcome{OK: true})
	select {
	case out := <-got:
		if !out.OK {
			t.Errorf("observer outcome = %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not invoked")
	}
}

func TestDelivery_ObserverAfterCompletion(t *testing.T) {
	d := newDelivery("d1", zerolog.Nop())
	d.complete(sms.Failure(sms.ReasonTimeout, nil))

	got := make(chan sms.Outcome, 1)
	d.OnComplete(func(out sms.Outcome) { got <- out })

	select {
	case out := <-got:
		if out.Reason != sms.ReasonTimeout {
			t.Errorf("observer outcome = %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("late observer not invoked")
	}
}

func TestDelivery_ObserverPanicIsContained(t *testing.T) {
	d := newDelivery("d1", zerolog.Nop())

	var after sync.WaitGroup
	after.Add(1)
	d.OnComplete(func(sms.Outcome) { panic("observer bug") })
	d.OnComplete(func(sms.Outcome) { after.Done() })

	d.complete(sms.Outcome{OK: true})
	done := make(chan struct{})
	go func() { after.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer after the panicking one did not run")
	}
}

func TestDelivery_CompleteTwiceKeepsFirstOutcome(t *testing.T) {
	d := newDelivery("d1", zerolog.Nop())
	d.complete(sms.Outcome{OK: true, MessageID: "first"})
	d.complete(sms.Failure(sms.ReasonRejected, nil))

	out := d.Outcome()
	if !out.OK || out.MessageID != "first" {
		t.Errorf("Outcome() = %+v, want the first completion", out)
	}
}
