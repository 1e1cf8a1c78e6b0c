package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/evfsm"
)

// setupMirror spins up a miniredis server and a mirror pointed at it. The
// worker is not started; tests start it themselves when they need one.
func setupMirror(t *testing.T, cfg Config) (*miniredis.Miniredis, *redis.Client, *Mirror) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg.Client = client
	mi, err := New(cfg)
	require.NoError(t, err)

	return mr, client, mi
}

func buildVehicle(t *testing.T) *evfsm.Machine {
	t.Helper()

	m, err := evfsm.NewDefinition().
		Initial("parked").
		State("parked").
		State("driving").
		Transition("parked", "drive", "driving").
		Transition("driving", "park", "parked").
		Build(evfsm.WithID("vehicle-fsm"))
	require.NoError(t, err)
	return m
}

func TestMirrorPublishesStateChanges(t *testing.T) {
	mr, client, mi := setupMirror(t, Config{Hash: "vehicle"})

	ctx := context.Background()
	pubsub := client.Subscribe(ctx, "vehicle")
	t.Cleanup(func() { pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err, "subscription handshake")

	mi.Start(ctx)
	t.Cleanup(mi.Stop)

	m := buildVehicle(t)
	mi.Attach(m)
	m.Init()
	m.Dispatch(evfsm.Event{ID: "drive"})

	require.Eventually(t, func() bool {
		return mr.HGet("vehicle", "state") == "driving"
	}, time.Second, 5*time.Millisecond, "hash field should mirror the new state")

	select {
	case msg := <-pubsub.Channel():
		require.Equal(t, "vehicle", msg.Channel)
		require.Equal(t, "state", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no change notification published")
	}

	m.Dispatch(evfsm.Event{ID: "park"})
	require.Eventually(t, func() bool {
		return mr.HGet("vehicle", "state") == "parked"
	}, time.Second, 5*time.Millisecond)

	require.Zero(t, mi.Dropped())
	require.Zero(t, mi.PublishErrors())
}

func TestMirrorCustomField(t *testing.T) {
	mr, _, mi := setupMirror(t, Config{Hash: "engine-ecu", Field: "fsm"})

	mi.Start(context.Background())
	t.Cleanup(mi.Stop)

	mi.Notify("ready")
	require.Eventually(t, func() bool {
		return mr.HGet("engine-ecu", "fsm") == "ready"
	}, time.Second, 5*time.Millisecond)
}

func TestMirrorDropsWhenQueueFull(t *testing.T) {
	// No worker: the first update fills the one-slot queue, the rest drop.
	_, _, mi := setupMirror(t, Config{Hash: "vehicle", QueueSize: 1})

	mi.Notify("a")
	mi.Notify("b")
	mi.Notify("c")

	require.Equal(t, uint64(2), mi.Dropped())
}

func TestMirrorStopFlushesBuffered(t *testing.T) {
	mr, _, mi := setupMirror(t, Config{Hash: "vehicle", QueueSize: 8})

	// Buffer updates before the worker exists, then start and stop. Stop
	// must not return until everything buffered has been written.
	mi.Notify("standby")
	mi.Notify("parked")

	mi.Start(context.Background())
	mi.Stop()

	require.Equal(t, "parked", mr.HGet("vehicle", "state"))
	require.Zero(t, mi.Dropped())
}

func TestMirrorCountsPublishErrors(t *testing.T) {
	mr, _, mi := setupMirror(t, Config{Hash: "vehicle"})
	mr.Close()

	mi.Start(context.Background())
	t.Cleanup(mi.Stop)

	mi.Notify("driving")
	require.Eventually(t, func() bool {
		return mi.PublishErrors() == 1
	}, time.Second, 5*time.Millisecond, "failed writes should be counted, not fatal")
}

func TestMirrorConfigValidation(t *testing.T) {
	if _, err := New(Config{Hash: "vehicle"}); err == nil {
		t.Fatal("expected error for missing client")
	}

	_, client, _ := setupMirror(t, Config{Hash: "x"})
	if _, err := New(Config{Client: client}); err == nil {
		t.Fatal("expected error for missing hash key")
	}

	mi, err := New(Config{Client: client, Hash: "vehicle"})
	require.NoError(t, err)
	require.Equal(t, "state", mi.field)
	require.Equal(t, defaultQueueSize, cap(mi.updates))
}
