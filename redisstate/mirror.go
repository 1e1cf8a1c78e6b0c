// Package redisstate mirrors a machine's current state into a Redis hash
// field and publishes a change notification, the way scooter services
// announce vehicle state. The mirror is write-only and asynchronous: a full
// update queue drops updates rather than stalling dispatch.
package redisstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/librescoot/evfsm"
)

const (
	defaultField     = "state"
	defaultQueueSize = 64
	publishTimeout   = 3 * time.Second
)

// Config holds the mirror settings. Client and Hash are required.
type Config struct {
	Client    *redis.Client
	Hash      string // Redis hash key, e.g. "vehicle"
	Field     string // Hash field holding the state, default "state"
	QueueSize int    // Pending update buffer, default 64
	Logger    zerolog.Logger
}

// Mirror publishes state updates for a single machine. Updates are applied
// as HSET hash field state followed by PUBLISH hash field, so subscribers
// re-read the field they were notified about.
type Mirror struct {
	client *redis.Client
	hash   string
	field  string
	logger zerolog.Logger

	updates chan evfsm.StateID
	quit    chan struct{}
	wg      sync.WaitGroup

	dropped   atomic.Uint64
	pubErrors atomic.Uint64
}

// New creates a mirror from the config.
func New(cfg Config) (*Mirror, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Hash == "" {
		return nil, errors.New("hash key is required")
	}
	field := cfg.Field
	if field == "" {
		field = defaultField
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	return &Mirror{
		client:  cfg.Client,
		hash:    cfg.Hash,
		field:   field,
		logger:  cfg.Logger,
		updates: make(chan evfsm.StateID, size),
		quit:    make(chan struct{}),
	}, nil
}

// Attach registers the mirror as the machine's state change callback. Call
// it before Init so the callback sees every transition.
func (mi *Mirror) Attach(m *evfsm.Machine) {
	m.OnStateChange(func(from, to evfsm.State) {
		mi.Notify(to.ID)
	})
}

// Notify queues a state update for publication. It never blocks; when the
// queue is full the update is dropped and counted.
func (mi *Mirror) Notify(state evfsm.StateID) {
	select {
	case mi.updates <- state:
	default:
		mi.dropped.Add(1)
		mi.logger.Warn().
			Str("hash", mi.hash).
			Str("state", string(state)).
			Msg("mirror queue full, update dropped")
	}
}

// Start launches the publisher worker.
func (mi *Mirror) Start(ctx context.Context) {
	mi.wg.Add(1)
	go mi.run(ctx)
}

// Stop flushes buffered updates and stops the worker.
func (mi *Mirror) Stop() {
	close(mi.quit)
	mi.wg.Wait()
}

// Dropped reports how many updates were discarded because the queue was
// full.
func (mi *Mirror) Dropped() uint64 {
	return mi.dropped.Load()
}

// PublishErrors reports how many publications failed against Redis.
func (mi *Mirror) PublishErrors() uint64 {
	return mi.pubErrors.Load()
}

func (mi *Mirror) run(ctx context.Context) {
	defer mi.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mi.quit:
			// Flush whatever is buffered, then exit.
			for {
				select {
				case state := <-mi.updates:
					mi.publish(ctx, state)
				default:
					return
				}
			}
		case state := <-mi.updates:
			mi.publish(ctx, state)
		}
	}
}

func (mi *Mirror) publish(ctx context.Context, state evfsm.StateID) {
	opCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := mi.client.HSet(opCtx, mi.hash, mi.field, string(state)).Err(); err != nil {
		mi.pubErrors.Add(1)
		mi.logger.Warn().
			Err(err).
			Str("hash", mi.hash).
			Str("state", string(state)).
			Msg("redis hset failed")
		return
	}

	if err := mi.client.Publish(opCtx, mi.hash, mi.field).Err(); err != nil {
		mi.pubErrors.Add(1)
		mi.logger.Warn().
			Err(err).
			Str("hash", mi.hash).
			Str("state", string(state)).
			Msg("redis publish failed")
	}
}
