package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// quickFields are the profile fields a client may set one at a time.
var quickFields = map[string]bool{
	"showRank":  true,
	"status":    true,
	"chatStyle": true,
	"avatar":    true,
	"country":   true,
}

type AccountService struct {
	store store.AccountStore
	now   func() time.Time
	log   *slog.Logger
	cost  int
}

func NewAccountService(s store.AccountStore, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{store: s, now: time.Now, log: logger, cost: bcrypt.DefaultCost}
}

// Register creates an account with a bcrypt password hash and a fresh profile.
func (s *AccountService) Register(ctx context.Context, username, password, email string) error {
	if username == "" || password == "" {
		return ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.store.CreateAccount(ctx, domain.NewProfile(username, email, s.now()), string(hash))
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrUserAlreadyExists
		}
		return err
	}
	s.log.Info("account registered", "username", username)
	return nil
}

func (s *AccountService) Login(ctx context.Context, username, password string) error {
	hash, err := s.store.PasswordHash(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrLoginUnknownUser
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

func (s *AccountService) UserExists(ctx context.Context, username string) (bool, error) {
	_, err := s.store.FindAccountID(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Profile returns the profile of username, or nil when there is none.
func (s *AccountService) Profile(ctx context.Context, username string) (*domain.Profile, error) {
	p, err := s.store.GetProfile(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]domain.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// SaveProfile applies a client save. An empty patch is accepted and changes nothing.
func (s *AccountService) SaveProfile(ctx context.Context, username string, patch domain.ProfilePatch) error {
	if username == "" {
		return ErrNotLogged
	}
	if patch.Empty() {
		return nil
	}
	savedAt := s.now()
	return s.update(ctx, username, patch, &savedAt)
}

// UpdateField sets a single whitelisted profile field.
func (s *AccountService) UpdateField(ctx context.Context, username, field string, value json.RawMessage) error {
	if username == "" {
		return ErrNotLogged
	}
	if !quickFields[field] || len(value) == 0 {
		return ErrUnknownField
	}

	doc, err := json.Marshal(map[string]json.RawMessage{field: value})
	if err != nil {
		return ErrUnknownField
	}
	var patch domain.ProfilePatch
	if err := json.Unmarshal(doc, &patch); err != nil || patch.Empty() {
		return ErrUnknownField
	}
	return s.update(ctx, username, patch, nil)
}

func (s *AccountService) SetStatus(ctx context.Context, username, status string) error {
	if username == "" {
		return ErrNotLogged
	}
	return s.update(ctx, username, domain.ProfilePatch{Status: &status}, nil)
}

// ResetCompetitive zeroes every account's rank.
func (s *AccountService) ResetCompetitive(ctx context.Context) error {
	if err := s.store.ResetRanks(ctx); err != nil {
		return err
	}
	s.log.Warn("competitive ranks reset")
	return nil
}

func (s *AccountService) update(ctx context.Context, username string, patch domain.ProfilePatch, savedAt *time.Time) error {
	err := s.store.UpdateProfile(ctx, username, patch, savedAt)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
