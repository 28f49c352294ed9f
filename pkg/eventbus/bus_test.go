package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBus() *Bus {
	return New(zerolog.Nop())
}

func TestSubscribeEmitUnsubscribe(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	count := 0

	sub := b.Subscribe("tick", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, false)

	b.Emit("tick", nil, "test")
	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	b.Unsubscribe(sub)
	b.Emit("tick", nil, "test")
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one delivery, got %d", count)
	}
}

func TestOnceSubscriptionFiresOnlyOnce(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	count := 0

	b.Subscribe("once-event", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, true)

	b.Emit("once-event", nil, "test")
	b.Emit("once-event", nil, "test")
	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})
}

func TestHandlerPanicIsAbsorbed(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	otherFired := false

	b.Subscribe("boom", func(e Event) {
		panic("kaboom")
	}, false)
	b.Subscribe("boom", func(e Event) {
		mu.Lock()
		otherFired = true
		mu.Unlock()
	}, false)

	b.Emit("boom", nil, "test")
	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return otherFired
	})
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
