package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func newAccountFixture(t *testing.T) (*AccountService, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	svc := NewAccountService(s, nil)
	svc.cost = bcrypt.MinCost
	return svc, s
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc, s := newAccountFixture(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "ken", "hadouken", "ken@example.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Register(ctx, "ken", "other", "x@example.com"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("duplicate register error = %v, want %v", err, ErrUserAlreadyExists)
	}

	hash, _ := s.PasswordHash(ctx, "ken")
	if hash == "hadouken" {
		t.Fatal("password stored in clear text")
	}

	if err := svc.Login(ctx, "ken", "hadouken"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Login(ctx, "ken", "shoryuken"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password error = %v, want %v", err, ErrWrongPassword)
	}
	if err := svc.Login(ctx, "akuma", "x"); !errors.Is(err, ErrLoginUnknownUser) {
		t.Fatalf("unknown user error = %v, want %v", err, ErrLoginUnknownUser)
	}
}

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newAccountFixture(t)
	ctx := context.Background()
	if err := svc.Register(ctx, "ryu", "pw", "ryu@example.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	p, err := svc.Profile(ctx, "ryu")
	if err != nil || p == nil {
		t.Fatalf("profile = (%v, %v)", p, err)
	}
	if p.Level != 1 || p.Avatar != "default" || p.Status != "online" || p.ChatStyle != "rounded" || !p.ShowRank {
		t.Fatalf("profile defaults = %+v", p)
	}
	if p.Rank != (domain.Rank{}) {
		t.Fatalf("rank = %+v, want zero rank", p.Rank)
	}

	if p, err := svc.Profile(ctx, "akuma"); err != nil || p != nil {
		t.Fatalf("missing profile = (%v, %v), want (nil, nil)", p, err)
	}
}

func TestSaveProfileAndUpdateField(t *testing.T) {
	t.Parallel()

	svc, _ := newAccountFixture(t)
	ctx := context.Background()
	if err := svc.Register(ctx, "chun", "pw", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	var patch domain.ProfilePatch
	if err := json.Unmarshal([]byte(`{"xp":1200,"rank":{"index":2,"points":10,"totalpoints":250,"wins":7,"losses":3},"password":"ignored"}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if err := svc.SaveProfile(ctx, "chun", patch); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.UpdateField(ctx, "chun", "country", json.RawMessage(`"jp"`)); err != nil {
		t.Fatalf("update field: %v", err)
	}
	if err := svc.UpdateField(ctx, "chun", "isAdmin", json.RawMessage(`true`)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("update non-whitelisted field error = %v, want %v", err, ErrUnknownField)
	}
	if err := svc.SetStatus(ctx, "chun", "away"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	p, _ := svc.Profile(ctx, "chun")
	if p.XP != 1200 || p.Rank.Wins != 7 || p.Country != "jp" || p.Status != "away" || p.IsAdmin {
		t.Fatalf("profile = %+v", p)
	}
	if p.LastSave == nil {
		t.Fatal("save must stamp lastSave")
	}

	if err := svc.SetStatus(ctx, "akuma", "away"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user error = %v, want %v", err, ErrUserNotFound)
	}
}

func TestResetCompetitive(t *testing.T) {
	t.Parallel()

	svc, _ := newAccountFixture(t)
	ctx := context.Background()
	_ = svc.Register(ctx, "ken", "pw", "")
	rank := domain.Rank{Index: 4, Points: 20, TotalPoints: 400, Wins: 9}
	if err := svc.SaveProfile(ctx, "ken", domain.ProfilePatch{Rank: &rank}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := svc.ResetCompetitive(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p, _ := svc.Profile(ctx, "ken")
	if p.Rank != (domain.Rank{}) {
		t.Fatalf("rank = %+v, want zero rank", p.Rank)
	}
}
