package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/store"
)

// DefaultDuelTTL is how long a duel stays live after it is sent.
const DefaultDuelTTL = time.Hour

var (
	duelTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horus_duel_transitions_total",
		Help: "Duel status transitions, labeled by target status",
	}, []string{"to"})

	duelSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "horus_duel_sweeps_expired_total",
		Help: "Duels expired by the lazy or background sweep",
	})

	duelReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horus_duel_reports_total",
		Help: "Result reports on accepted duels, labeled by claimed result and whether they were stored",
	}, []string{"result", "applied"})
)

// DuelService runs the duel lifecycle against a DuelStore. Expiry is lazy:
// every entry point that reads or mutates live duels sweeps stale ones first.
type DuelService struct {
	store store.DuelStore
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

type DuelOption func(*DuelService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DuelOption {
	return func(s *DuelService) { s.now = now }
}

func WithLogger(logger *slog.Logger) DuelOption {
	return func(s *DuelService) { s.log = logger }
}

func NewDuelService(s store.DuelStore, ttl time.Duration, opts ...DuelOption) *DuelService {
	if ttl <= 0 {
		ttl = DefaultDuelTTL
	}
	svc := &DuelService{
		store: s,
		ttl:   ttl,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *DuelService) TTL() time.Duration {
	return s.ttl
}

// SweepExpired takes every live duel at or past its expiry out of the live
// states and returns how many changed. Accepted duels that already hold both
// reports are settled as finished or invalid so the result is kept; every
// other stale duel becomes expired.
func (s *DuelService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()

	stale, err := s.store.StaleReportedDuels(ctx, now)
	if err != nil {
		return 0, err
	}
	var settled int64
	for _, duelID := range stale {
		d, err := s.store.FindDuel(ctx, duelID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return settled, err
		}
		if d.Status != domain.DuelAccepted {
			continue
		}
		out, err := s.settle(ctx, d)
		if err != nil {
			return settled, err
		}
		if out.Finished {
			settled++
		}
	}

	n, err := s.store.BulkExpireStale(ctx, now)
	if err != nil {
		return settled, err
	}
	if n > 0 {
		duelSweptTotal.Add(float64(n))
		duelTransitions.WithLabelValues(string(domain.DuelExpired)).Add(float64(n))
		s.log.Debug("expired stale duels", "count", n)
	}
	return settled + n, nil
}

// Challenge creates a pending duel from challenger to opponent.
func (s *DuelService) Challenge(ctx context.Context, challenger, opponent string) (*domain.Duel, error) {
	if challenger == "" {
		return nil, ErrNotLogged
	}
	if challenger == opponent {
		return nil, ErrInvalidDuel
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, err
	}

	fromID, err := s.store.FindAccountID(ctx, challenger)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotLogged
		}
		return nil, err
	}
	toID, err := s.store.FindAccountID(ctx, opponent)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Fast path; InsertDuel repeats the check atomically.
	if _, err := s.store.FindLiveDuelForAccount(ctx, fromID); err == nil {
		return nil, ErrAlreadyInDuel
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	createdAt := s.now()
	expiresAt := createdAt.Add(s.ttl)
	duelID, err := s.store.InsertDuel(ctx, fromID, toID, createdAt, expiresAt)
	switch {
	case errors.Is(err, store.ErrChallengerBusy):
		return nil, ErrAlreadyInDuel
	case errors.Is(err, store.ErrOpponentBusy):
		return nil, ErrOpponentInDuel
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, err
	}

	duelTransitions.WithLabelValues(string(domain.DuelPending)).Inc()
	s.log.Info("duel sent", "duel_id", duelID, "from", challenger, "to", opponent)

	return &domain.Duel{
		ID:         duelID,
		Challenger: domain.Participant{ID: fromID, Username: challenger},
		Opponent:   domain.Participant{ID: toID, Username: opponent},
		Status:     domain.DuelPending,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Accept moves a pending duel to accepted. Only the challenged account may accept.
func (s *DuelService) Accept(ctx context.Context, responder string, duelID int64) (*domain.Duel, error) {
	if responder == "" {
		return nil, ErrNotLogged
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, err
	}

	responderID, err := s.store.FindAccountID(ctx, responder)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotLogged
		}
		return nil, err
	}

	d, err := s.store.FindDuel(ctx, duelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDuelNotFound
		}
		return nil, err
	}
	if d.Status != domain.DuelPending || d.Opponent.ID != responderID {
		return nil, ErrDuelNotFound
	}

	n, err := s.store.UpdateDuelStatus(ctx, duelID, domain.DuelAccepted, domain.DuelPending)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost a race with a reject, expire or sweep.
		return nil, ErrDuelNotFound
	}

	duelTransitions.WithLabelValues(string(domain.DuelAccepted)).Inc()
	s.log.Info("duel accepted", "duel_id", duelID, "by", responder)

	d.Status = domain.DuelAccepted
	return d, nil
}

// Reject expires a pending duel on behalf of either participant. Anything
// else, including an unknown duel or a duel already past pending, is a silent no-op.
func (s *DuelService) Reject(ctx context.Context, responder string, duelID int64) error {
	if responder == "" {
		return ErrNotLogged
	}

	responderID, err := s.store.FindAccountID(ctx, responder)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	d, err := s.store.FindDuel(ctx, duelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if !d.Involves(responderID) {
		return nil
	}

	n, err := s.store.UpdateDuelStatus(ctx, duelID, domain.DuelExpired, domain.DuelPending)
	if err != nil {
		return err
	}
	if n > 0 {
		duelTransitions.WithLabelValues(string(domain.DuelExpired)).Inc()
		s.log.Info("duel rejected", "duel_id", duelID, "by", responder)
	}
	return nil
}

// ForceExpire sets the duel to expired whatever its current status.
// It performs no authorization; callers gate access.
func (s *DuelService) ForceExpire(ctx context.Context, duelID int64) error {
	n, err := s.store.UpdateDuelStatus(ctx, duelID, domain.DuelExpired)
	if err != nil {
		return err
	}
	if n > 0 {
		duelTransitions.WithLabelValues(string(domain.DuelExpired)).Inc()
		s.log.Warn("duel force-expired", "duel_id", duelID)
	}
	return nil
}

// CurrentDuel returns the newest live duel involving the account, or nil.
func (s *DuelService) CurrentDuel(ctx context.Context, username string) (*domain.Duel, error) {
	if username == "" {
		return nil, nil
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, err
	}

	accountID, err := s.store.FindAccountID(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	d, err := s.store.FindLiveDuelForAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ReportResult records a participant's claimed outcome of an accepted duel.
// It returns false when the report does not apply: malformed input, no such
// accepted duel, or a player who is not a participant. A repeat report from
// the same player applies but is discarded; the first report stands.
func (s *DuelService) ReportResult(ctx context.Context, duelID int64, player string, result domain.DuelResult) (bool, error) {
	if duelID <= 0 || player == "" || !result.Valid() {
		return false, nil
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		return false, err
	}

	d, err := s.store.FindDuel(ctx, duelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if d.Status != domain.DuelAccepted {
		return false, nil
	}
	reporter, ok := d.ParticipantByName(player)
	if !ok {
		return false, nil
	}

	inserted, err := s.store.InsertReportIfAbsent(ctx, domain.DuelReport{
		DuelID:     duelID,
		AccountID:  reporter.ID,
		Username:   reporter.Username,
		Result:     result,
		ReportedAt: s.now(),
	})
	if err != nil {
		return false, err
	}

	duelReportsTotal.WithLabelValues(string(result), strconv.FormatBool(inserted)).Inc()
	if inserted {
		s.log.Info("duel result reported", "duel_id", duelID, "player", player, "result", result)
	} else {
		s.log.Debug("duplicate duel report discarded", "duel_id", duelID, "player", player)
	}
	return true, nil
}

// Outcome is the reconciliation state of a duel.
type Outcome struct {
	Finished bool
	Invalid  bool
	Winner   string
	Loser    string
}

// Verdict is the result of reconciling a duel's reports.
type Verdict struct {
	Complete bool
	Valid    bool
	Winner   domain.DuelReport
	Loser    domain.DuelReport
}

// Reconcile decides a duel from its reports. With fewer than two reports the
// verdict is incomplete. Otherwise it is valid iff exactly one report claims
// a win and exactly one claims a loss; the claimants are trusted as winner and loser.
func Reconcile(reports []domain.DuelReport) Verdict {
	if len(reports) < 2 {
		return Verdict{}
	}

	var wins, losses []domain.DuelReport
	for _, r := range reports {
		switch r.Result {
		case domain.ResultWin:
			wins = append(wins, r)
		case domain.ResultLoss:
			losses = append(losses, r)
		}
	}
	if len(wins) != 1 || len(losses) != 1 {
		return Verdict{Complete: true}
	}
	return Verdict{Complete: true, Valid: true, Winner: wins[0], Loser: losses[0]}
}

// CheckAndFinalize reconciles an accepted duel once both reports are in.
// Calling it again on a decided duel replays the stored outcome.
func (s *DuelService) CheckAndFinalize(ctx context.Context, duelID int64) (Outcome, error) {
	d, err := s.store.FindDuel(ctx, duelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{}, nil
		}
		return Outcome{}, err
	}
	if d.Status != domain.DuelAccepted {
		return outcomeOf(d), nil
	}
	return s.settle(ctx, d)
}

// settle reconciles the reports of an accepted duel and records the verdict.
func (s *DuelService) settle(ctx context.Context, d *domain.Duel) (Outcome, error) {
	duelID := d.ID
	reports, err := s.store.ListReports(ctx, duelID)
	if err != nil {
		return Outcome{}, err
	}
	verdict := Reconcile(reports)
	if !verdict.Complete {
		return Outcome{}, nil
	}

	var applied bool
	if verdict.Valid {
		applied, err = s.store.FinalizeDuel(ctx, duelID, verdict.Winner.AccountID, verdict.Loser.AccountID)
	} else {
		applied, err = s.store.MarkInvalid(ctx, duelID)
	}
	if err != nil {
		return Outcome{}, err
	}
	if !applied {
		// Another caller decided it first, or it was force-expired.
		return s.storedOutcome(ctx, duelID)
	}

	if verdict.Valid {
		duelTransitions.WithLabelValues(string(domain.DuelFinished)).Inc()
		s.log.Info("duel finished", "duel_id", duelID,
			"winner", verdict.Winner.Username, "loser", verdict.Loser.Username)
		return Outcome{Finished: true, Winner: verdict.Winner.Username, Loser: verdict.Loser.Username}, nil
	}

	duelTransitions.WithLabelValues(string(domain.DuelInvalid)).Inc()
	s.log.Warn("duel reports disagree, marked invalid", "duel_id", duelID)
	return Outcome{Finished: true, Invalid: true}, nil
}

func (s *DuelService) storedOutcome(ctx context.Context, duelID int64) (Outcome, error) {
	d, err := s.store.FindDuel(ctx, duelID)
	if err != nil {
		return Outcome{}, fmt.Errorf("reload duel %d: %w", duelID, err)
	}
	return outcomeOf(d), nil
}

func outcomeOf(d *domain.Duel) Outcome {
	switch d.Status {
	case domain.DuelFinished:
		out := Outcome{Finished: true}
		if d.Winner != nil {
			out.Winner = d.Winner.Username
		}
		if d.Loser != nil {
			out.Loser = d.Loser.Username
		}
		return out
	case domain.DuelInvalid:
		return Outcome{Finished: true, Invalid: true}
	}
	return Outcome{}
}
