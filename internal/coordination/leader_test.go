package coordination_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/coordination"
	"github.com/jonesrussell/gosched/internal/logger"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newElection(t *testing.T, client *redis.Client, cfg coordination.LeaderConfig) *coordination.LeaderElection {
	t.Helper()

	if cfg.Key == "" {
		cfg.Key = "scheduler:leader"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 300 * time.Millisecond
	}
	if cfg.ElectionInterval == 0 {
		cfg.ElectionInterval = 20 * time.Millisecond
	}

	el, err := coordination.NewLeaderElection(client, cfg, logger.NewNoOp())
	require.NoError(t, err)
	return el
}

func TestNewLeaderElectionValidation(t *testing.T) {
	client := newTestClient(t)

	_, err := coordination.NewLeaderElection(nil, coordination.LeaderConfig{Key: "k"}, logger.NewNoOp())
	require.Error(t, err)

	_, err = coordination.NewLeaderElection(client, coordination.LeaderConfig{}, logger.NewNoOp())
	require.Error(t, err)
}

func TestLeaderElectionSingleWinner(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	first := newElection(t, client, coordination.LeaderConfig{})
	second := newElection(t, client, coordination.LeaderConfig{})

	first.Start(ctx)
	t.Cleanup(func() { _ = first.Stop(ctx) })

	require.True(t, first.IsLeader())
	require.True(t, first.OkayToRun(ctx))

	second.Start(ctx)
	t.Cleanup(func() { _ = second.Stop(ctx) })

	require.False(t, second.IsLeader())
	require.False(t, second.OkayToRun(ctx))

	leaderID, err := first.LeaderID(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID(), leaderID)
}

func TestStandbyTakesOverAfterResignation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	elected := make(chan struct{}, 1)
	first := newElection(t, client, coordination.LeaderConfig{})
	second := newElection(t, client, coordination.LeaderConfig{
		OnElected: func() { elected <- struct{}{} },
	})

	first.Start(ctx)
	require.True(t, first.IsLeader())

	second.Start(ctx)
	t.Cleanup(func() { _ = second.Stop(ctx) })

	require.NoError(t, first.Stop(ctx))

	select {
	case <-elected:
	case <-time.After(2 * time.Second):
		t.Fatal("standby never took over leadership")
	}
	require.True(t, second.OkayToRun(ctx))
}

func TestLeaderStepsDownWhenLeaseIsTaken(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	lost := make(chan struct{}, 1)
	el := newElection(t, client, coordination.LeaderConfig{
		Key:    "scheduler:leader",
		OnLost: func() { lost <- struct{}{} },
	})

	el.Start(ctx)
	t.Cleanup(func() { _ = el.Stop(ctx) })
	require.True(t, el.IsLeader())

	// Simulate another instance stealing the lease after an expiry.
	require.NoError(t, client.Set(ctx, "scheduler:leader", "usurper", 0).Err())

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("leader never noticed the lost lease")
	}
	require.False(t, el.OkayToRun(ctx))
}
