package service

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
)

func TestNewSweeperRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDuelFixture(t)
	if _, err := NewSweeper(svc, 0, nil); err == nil {
		t.Fatal("expected interval error")
	}
}

func TestSweeperExpiresWithoutTraffic(t *testing.T) {
	t.Parallel()

	svc, s, clock := newDuelFixture(t, "ken", "ryu")
	ctx := context.Background()
	d := mustChallenge(t, svc, "ken", "ryu")
	clock.Set(3_600_000)

	sweeper, err := NewSweeper(svc, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.FindDuel(ctx, d.ID)
		if err != nil {
			t.Fatalf("find duel: %v", err)
		}
		if got.Status == domain.DuelExpired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("duel was not expired by the background sweep")
}
