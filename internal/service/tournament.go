package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/models"
	"github.com/punchamoorthee/horus/internal/store"
)

type TournamentService struct {
	store    store.TournamentStore
	accounts store.AccountStore
	now      func() time.Time
	log      *slog.Logger
}

func NewTournamentService(s store.Store, logger *slog.Logger) *TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TournamentService{store: s, accounts: s, now: time.Now, log: logger}
}

// List returns the active tournament, if any, and the finished ones in
// the order they finished.
func (s *TournamentService) List(ctx context.Context) (models.TournamentsResponse, error) {
	resp := models.TournamentsResponse{PastTournaments: []domain.Tournament{}}

	active, err := s.store.ActiveTournament(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return resp, err
	}
	resp.ActiveTournament = active

	past, err := s.store.FinishedTournaments(ctx)
	if err != nil {
		return resp, err
	}
	for i := range past {
		if past[i].Trophy == "" {
			past[i].Trophy = domain.DefaultTrophy
		}
	}
	resp.PastTournaments = past
	return resp, nil
}

func (s *TournamentService) Create(ctx context.Context, req models.CreateTournamentRequest) (*domain.Tournament, error) {
	trophy := req.Trophy
	if trophy == "" {
		trophy = domain.DefaultTrophy
	}
	t, err := s.store.InsertTournament(ctx, domain.Tournament{
		Name:    req.Name,
		Size:    req.Size,
		Players: req.Players,
		Rewards: req.Rewards,
		Bracket: req.Bracket,
		Trophy:  trophy,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyActive) {
			return nil, ErrTournamentActive
		}
		return nil, err
	}
	s.log.Info("tournament created", "id", t.ID, "name", t.Name, "size", t.Size)
	return t, nil
}

// Update replaces the bracket and winner of the tournament while it is active.
func (s *TournamentService) Update(ctx context.Context, req models.UpdateTournamentRequest) error {
	return s.store.UpdateActiveTournament(ctx, req.ID, req.Bracket, req.Winner)
}

// Finish closes the active tournament, stamping the winner's current avatar.
func (s *TournamentService) Finish(ctx context.Context) error {
	t, err := s.store.ActiveTournament(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoActiveTournament
		}
		return err
	}

	avatar := "default"
	if t.Winner != nil && *t.Winner != "" {
		p, err := s.accounts.GetProfile(ctx, *t.Winner)
		switch {
		case err == nil && p.Avatar != "":
			avatar = p.Avatar
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}

	if err := s.store.FinishTournament(ctx, t.ID, avatar, s.now()); err != nil {
		return err
	}
	s.log.Info("tournament finished", "id", t.ID, "winner_avatar", avatar)
	return nil
}
