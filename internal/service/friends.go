package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/store"
)

type FriendService struct {
	store    store.FriendStore
	accounts store.AccountStore
	log      *slog.Logger
}

func NewFriendService(s store.Store, logger *slog.Logger) *FriendService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FriendService{store: s, accounts: s, log: logger}
}

// resolve maps a username to an account id; a missing account yields missing.
func (s *FriendService) resolve(ctx context.Context, username string, missing error) (int64, error) {
	id, err := s.accounts.FindAccountID(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, missing
		}
		return 0, err
	}
	return id, nil
}

// Lists returns the friends and pending requests of username. An unknown
// account has empty lists.
func (s *FriendService) Lists(ctx context.Context, username string) (domain.FriendLists, error) {
	empty := domain.FriendLists{Friends: []string{}, Incoming: []string{}, Outgoing: []string{}}
	if username == "" {
		return empty, ErrNotLogged
	}
	id, err := s.resolve(ctx, username, ErrUserNotFound)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return empty, nil
		}
		return empty, err
	}
	return s.store.FriendLists(ctx, id)
}

// Send sends a friend request. If the other account already asked us, the
// request is accepted instead and autoAccepted is true.
func (s *FriendService) Send(ctx context.Context, username, toUser string) (autoAccepted bool, err error) {
	if username == "" {
		return false, ErrNotLogged
	}
	if username == toUser {
		return false, ErrAddSelf
	}

	meID, err := s.resolve(ctx, username, ErrNotLogged)
	if err != nil {
		return false, err
	}
	otherID, err := s.resolve(ctx, toUser, ErrUserNotFound)
	if err != nil {
		return false, err
	}

	outgoing, err := s.row(ctx, meID, otherID)
	if err != nil {
		return false, err
	}
	incoming, err := s.row(ctx, otherID, meID)
	if err != nil {
		return false, err
	}

	switch {
	case outgoing == domain.FriendAccepted || incoming == domain.FriendAccepted:
		return false, ErrAlreadyFriend
	case outgoing == domain.FriendPending:
		return false, ErrRequestAlreadySent
	case incoming == domain.FriendPending:
		if _, err := s.store.AcceptFriendRequest(ctx, otherID, meID); err != nil {
			return false, err
		}
		s.log.Info("friend request auto-accepted", "username", username, "friend", toUser)
		return true, nil
	}

	if err := s.store.InsertFriendRequest(ctx, meID, otherID); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, ErrRequestAlreadySent
		}
		return false, err
	}
	return false, nil
}

func (s *FriendService) row(ctx context.Context, fromID, toID int64) (domain.FriendStatus, error) {
	st, err := s.store.FindFriendRow(ctx, fromID, toID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return st, err
}

// pair resolves both sides of a request; either missing is ErrUserNotFound.
func (s *FriendService) pair(ctx context.Context, username, other string) (int64, int64, error) {
	meID, err := s.resolve(ctx, username, ErrUserNotFound)
	if err != nil {
		return 0, 0, err
	}
	otherID, err := s.resolve(ctx, other, ErrUserNotFound)
	if err != nil {
		return 0, 0, err
	}
	return meID, otherID, nil
}

// Accept accepts the request fromUser sent to username.
func (s *FriendService) Accept(ctx context.Context, username, fromUser string) error {
	meID, otherID, err := s.pair(ctx, username, fromUser)
	if err != nil {
		return err
	}
	_, err = s.store.AcceptFriendRequest(ctx, otherID, meID)
	return err
}

// Reject drops the pending request fromUser sent to username.
func (s *FriendService) Reject(ctx context.Context, username, fromUser string) error {
	meID, otherID, err := s.pair(ctx, username, fromUser)
	if err != nil {
		return err
	}
	return s.store.DeleteFriendRequest(ctx, otherID, meID)
}

func (s *FriendService) Remove(ctx context.Context, username, friend string) error {
	meID, otherID, err := s.pair(ctx, username, friend)
	if err != nil {
		return err
	}
	return s.store.DeleteFriendship(ctx, meID, otherID)
}
