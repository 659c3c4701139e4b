package event

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/HerbHall/streamwatch/pkg/plugin"
	"github.com/HerbHall/streamwatch/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func TestBus_PublishDeliversToTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var hits, other int
	bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { hits++ })
	bus.Subscribe("b", func(_ context.Context, _ plugin.Event) { other++ })

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "a"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if hits != 1 || other != 0 {
		t.Errorf("hits=%d other=%d, want 1 and 0", hits, other)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var first, second int
	unsub := bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { first++ })
	bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { second++ })

	unsub()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})

	if first != 0 {
		t.Errorf("unsubscribed handler called %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining handler called %d times, want 1", second)
	}
}

func TestBus_PanicRecovered(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var after int
	bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { panic("boom") })
	bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { after++ })

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	if after != 1 {
		t.Errorf("handler after panicking one called %d times, want 1", after)
	}
}

func TestBus_PublishAsyncWait(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var n atomic.Int64
	for i := 0; i < 4; i++ {
		bus.Subscribe("a", func(_ context.Context, _ plugin.Event) { n.Add(1) })
	}

	for i := 0; i < 10; i++ {
		bus.PublishAsync(context.Background(), plugin.Event{Topic: "a"})
	}
	bus.Wait()

	if got := n.Load(); got != 40 {
		t.Errorf("handled %d events, want 40", got)
	}
}

func TestContract(t *testing.T) {
	plugintest.TestEventBusContract(t,
		func() plugin.EventBus { return NewBus(zap.NewNop()) },
		func(b plugin.EventBus) { b.(*Bus).Wait() },
	)
}
