package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent uint

func (e testEvent) Value() uint    { return uint(e) }
func (e testEvent) String() string { return "test" }

func receive(t *testing.T, s Subscription) (any, bool) {
	t.Helper()

	select {
	case v, ok := <-s.C:
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	return nil, false
}

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	t.Cleanup(bus.Close)

	sub := bus.Subscribe(testEvent(1))
	other := bus.Subscribe(testEvent(2))
	require.True(t, sub.Active())

	bus.Publish(testEvent(1), "scan done")

	v, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, "scan done", v)

	select {
	case v := <-other.C:
		t.Fatalf("unexpected event %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
}

func TestDisabledBus(t *testing.T) {
	bus := Disabled()

	sub := bus.Subscribe(testEvent(1))
	assert.False(t, sub.Active())

	bus.Publish(testEvent(1), "dropped")
	_, ok := receive(t, sub)
	assert.False(t, ok)
}

func TestCloseClosesSubscriptions(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(testEvent(3))

	bus.Close()

	_, ok := receive(t, sub)
	assert.False(t, ok)
}

func TestNilBusAndNilID(t *testing.T) {
	var bus *Bus
	bus.Publish(testEvent(1), nil)

	sub := bus.Subscribe(testEvent(1))
	assert.False(t, sub.Active())

	live := New()
	live.Publish(nil, nil)
	live.Close()
}
