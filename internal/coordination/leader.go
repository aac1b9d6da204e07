// Package coordination provides Redis-backed leader election so that a
// pool of scheduler instances runs jobs from exactly one active node while
// the others stand by warm.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gosched/internal/logger"
)

const (
	// DefaultLeaderTTL is how long a held leadership lease stays valid
	// without renewal.
	DefaultLeaderTTL = 30 * time.Second

	// DefaultElectionRetryInterval is how often a standby retries the
	// election.
	DefaultElectionRetryInterval = 5 * time.Second

	// renewalDivisor derives the renewal interval from the lease TTL.
	renewalDivisor = 3
)

// ErrNotLeader is returned when a leader-only operation is attempted by a
// standby instance.
var ErrNotLeader = errors.New("not the leader")

// renewScript atomically extends the lease only while this instance still
// holds it.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// resignScript atomically releases the lease only while this instance still
// holds it.
var resignScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// LeaderConfig holds the tunables for an election.
type LeaderConfig struct {
	// Key is the Redis key holding the leadership lease.
	Key string
	// TTL is the lease lifetime.
	TTL time.Duration
	// ElectionInterval is how often a standby attempts to take over.
	ElectionInterval time.Duration
	// OnElected is called when leadership is acquired.
	OnElected func()
	// OnLost is called when leadership is lost or released.
	OnLost func()
}

// LeaderElection competes for a Redis lease and tracks whether this
// instance currently holds it. Its OkayToRun method is shaped to gate a
// scheduler run loop.
type LeaderElection struct {
	client           *redis.Client
	key              string
	id               string
	ttl              time.Duration
	renewalInterval  time.Duration
	electionInterval time.Duration
	logger           logger.Interface

	isLeader atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup

	onElected func()
	onLost    func()
}

// NewLeaderElection creates an election participant with a unique instance
// identity. It does not contact Redis until Start is called.
func NewLeaderElection(client *redis.Client, cfg LeaderConfig, log logger.Interface) (*LeaderElection, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Key == "" {
		return nil, errors.New("leader key is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLeaderTTL
	}
	if cfg.ElectionInterval <= 0 {
		cfg.ElectionInterval = DefaultElectionRetryInterval
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	return &LeaderElection{
		client:           client,
		key:              cfg.Key,
		id:               uuid.NewString(),
		ttl:              cfg.TTL,
		renewalInterval:  cfg.TTL / renewalDivisor,
		electionInterval: cfg.ElectionInterval,
		logger:           log,
		stopCh:           make(chan struct{}),
		onElected:        cfg.OnElected,
		onLost:           cfg.OnLost,
	}, nil
}

// Start makes an immediate election attempt and then runs the
// election/renewal loop in the background.
func (l *LeaderElection) Start(ctx context.Context) {
	l.tryBecomeLeader(ctx)
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop halts the loop and releases the lease if held, letting a standby
// take over without waiting for the TTL to lapse.
func (l *LeaderElection) Stop(ctx context.Context) error {
	close(l.stopCh)
	l.wg.Wait()

	if l.isLeader.Load() {
		return l.resign(ctx)
	}
	return nil
}

// IsLeader reports whether this instance currently holds the lease.
func (l *LeaderElection) IsLeader() bool {
	return l.isLeader.Load()
}

// OkayToRun reports whether the scheduler on this instance may fire jobs.
func (l *LeaderElection) OkayToRun(_ context.Context) bool {
	return l.isLeader.Load()
}

// ID returns this instance's election identity.
func (l *LeaderElection) ID() string {
	return l.id
}

// LeaderID returns the identity of the current leader, or an empty string
// when no instance holds the lease.
func (l *LeaderElection) LeaderID(ctx context.Context) (string, error) {
	val, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read leader key: %w", err)
	}
	return val, nil
}

func (l *LeaderElection) run(ctx context.Context) {
	defer l.wg.Done()

	electionTicker := time.NewTicker(l.electionInterval)
	defer electionTicker.Stop()

	renewalTicker := time.NewTicker(l.renewalInterval)
	defer renewalTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.markLost()
			return
		case <-l.stopCh:
			return
		case <-electionTicker.C:
			if !l.isLeader.Load() {
				l.tryBecomeLeader(ctx)
			}
		case <-renewalTicker.C:
			if l.isLeader.Load() {
				l.renewLease(ctx)
			}
		}
	}
}

func (l *LeaderElection) tryBecomeLeader(ctx context.Context) {
	acquired, err := l.client.SetNX(ctx, l.key, l.id, l.ttl).Result()
	if err != nil {
		l.logger.Error("leader election attempt failed", "key", l.key, "error", err)
		return
	}
	if !acquired {
		return
	}

	l.logger.Info("acquired scheduler leadership", "key", l.key, "instance_id", l.id)
	l.isLeader.Store(true)
	if l.onElected != nil {
		l.onElected()
	}
}

func (l *LeaderElection) renewLease(ctx context.Context) {
	result, err := renewScript.Run(ctx, l.client, []string{l.key}, l.id, l.ttl.Milliseconds()).Int()
	if err != nil {
		l.logger.Error("failed to renew leadership lease", "key", l.key, "error", err)
		l.markLost()
		return
	}
	if result == 0 {
		l.logger.Warn("leadership lease expired or was taken over", "key", l.key)
		l.markLost()
	}
}

func (l *LeaderElection) resign(ctx context.Context) error {
	if _, err := resignScript.Run(ctx, l.client, []string{l.key}, l.id).Int(); err != nil {
		return fmt.Errorf("failed to release leadership lease: %w", err)
	}
	l.markLost()
	l.logger.Info("released scheduler leadership", "key", l.key, "instance_id", l.id)
	return nil
}

func (l *LeaderElection) markLost() {
	if l.isLeader.CompareAndSwap(true, false) {
		l.logger.Info("standing by as follower", "key", l.key, "instance_id", l.id)
		if l.onLost != nil {
			l.onLost()
		}
	}
}
