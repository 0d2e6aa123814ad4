package store

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/horus/internal/domain"
)

// testDBEnv names a disposable database; the Postgres tests skip without it.
const testDBEnv = "HORUS_TEST_DB_SOURCE"

func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv(testDBEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDBEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.ApplySchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s
}

// seedPostgresAccounts creates accounts with run-unique names so tests can share a database.
func seedPostgresAccounts(t *testing.T, s *PostgresStore, n int) []int64 {
	t.Helper()
	run := uuid.NewString()[:8]
	ids := make([]int64, n)
	for i := range ids {
		name := run + "-" + string(rune('a'+i))
		id, err := s.CreateAccount(context.Background(), domain.NewProfile(name, "", time.Now()), "hash")
		if err != nil {
			t.Fatalf("create account %q: %v", name, err)
		}
		ids[i] = id
	}
	return ids
}

func TestPostgresInsertDuelOneLiveDuelUnderContention(t *testing.T) {
	s := newPostgresTestStore(t)
	ids := seedPostgresAccounts(t, s, 3)
	ctx := context.Background()
	start := time.Now()
	expiry := start.Add(time.Hour)

	// Crossed pairs exercise both lock orders.
	pairs := [][2]int64{{ids[0], ids[1]}, {ids[1], ids[0]}, {ids[2], ids[0]}, {ids[0], ids[2]}}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(p [2]int64) {
			defer wg.Done()
			_, err := s.InsertDuel(ctx, p[0], p[1], start, expiry)
			switch {
			case err == nil:
				mu.Lock()
				created++
				mu.Unlock()
			case errors.Is(err, ErrChallengerBusy), errors.Is(err, ErrOpponentBusy):
			default:
				t.Errorf("insert duel %v: %v", p, err)
			}
		}(pairs[i%len(pairs)])
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	for _, id := range ids {
		var live int
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM duels
			WHERE status IN ('pending', 'accepted') AND (from_user = $1 OR to_user = $1)`, id).Scan(&live)
		if err != nil {
			t.Fatalf("count live duels: %v", err)
		}
		if live > 1 {
			t.Fatalf("account %d has %d live duels, want at most 1", id, live)
		}
	}
}

func TestPostgresSweepSeparatesFullyReportedDuels(t *testing.T) {
	s := newPostgresTestStore(t)
	ids := seedPostgresAccounts(t, s, 6)
	ctx := context.Background()
	start := time.Now().Add(-2 * time.Hour)
	expiry := start.Add(time.Hour)

	pending, err := s.InsertDuel(ctx, ids[0], ids[1], start, expiry)
	if err != nil {
		t.Fatalf("insert pending: %v", err)
	}
	halfReported, err := s.InsertDuel(ctx, ids[2], ids[3], start, expiry)
	if err != nil {
		t.Fatalf("insert half reported: %v", err)
	}
	fullyReported, err := s.InsertDuel(ctx, ids[4], ids[5], start, expiry)
	if err != nil {
		t.Fatalf("insert fully reported: %v", err)
	}
	for _, id := range []int64{halfReported, fullyReported} {
		if n, err := s.UpdateDuelStatus(ctx, id, domain.DuelAccepted, domain.DuelPending); err != nil || n != 1 {
			t.Fatalf("accept %d = (%d, %v), want (1, nil)", id, n, err)
		}
	}

	reports := []domain.DuelReport{
		{DuelID: halfReported, AccountID: ids[2], Result: domain.ResultWin, ReportedAt: start},
		{DuelID: fullyReported, AccountID: ids[4], Result: domain.ResultWin, ReportedAt: start},
		{DuelID: fullyReported, AccountID: ids[5], Result: domain.ResultLoss, ReportedAt: start},
	}
	for _, r := range reports {
		if inserted, err := s.InsertReportIfAbsent(ctx, r); err != nil || !inserted {
			t.Fatalf("report %+v = (%v, %v), want (true, nil)", r, inserted, err)
		}
	}
	if inserted, err := s.InsertReportIfAbsent(ctx, reports[0]); err != nil || inserted {
		t.Fatalf("repeat report = (%v, %v), want (false, nil)", inserted, err)
	}

	now := time.Now()
	stale, err := s.StaleReportedDuels(ctx, now)
	if err != nil {
		t.Fatalf("stale reported: %v", err)
	}
	if !slices.Contains(stale, fullyReported) || slices.Contains(stale, halfReported) {
		t.Fatalf("stale reported = %v, want %d and not %d", stale, fullyReported, halfReported)
	}

	if _, err := s.BulkExpireStale(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	want := map[int64]domain.DuelStatus{
		pending:       domain.DuelExpired,
		halfReported:  domain.DuelExpired,
		fullyReported: domain.DuelAccepted,
	}
	for id, status := range want {
		d, err := s.FindDuel(ctx, id)
		if err != nil {
			t.Fatalf("find duel %d: %v", id, err)
		}
		if d.Status != status {
			t.Fatalf("duel %d status = %q, want %q", id, d.Status, status)
		}
	}

	if ok, err := s.FinalizeDuel(ctx, fullyReported, ids[4], ids[5]); err != nil || !ok {
		t.Fatalf("finalize = (%v, %v), want (true, nil)", ok, err)
	}
	d, _ := s.FindDuel(ctx, fullyReported)
	if d.Status != domain.DuelFinished || d.Winner == nil || d.Winner.ID != ids[4] {
		t.Fatalf("finalized duel = %+v, want finished with winner %d", d, ids[4])
	}
}
