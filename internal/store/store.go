package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrChallengerBusy and ErrOpponentBusy are returned by InsertDuel when a
	// participant already has a live duel at commit time.
	ErrChallengerBusy = errors.New("challenger already in a live duel")
	ErrOpponentBusy   = errors.New("opponent already in a live duel")
	ErrAlreadyActive  = errors.New("a tournament is already active")
)

// DuelStore persists duels and their result reports.
type DuelStore interface {
	FindAccountID(ctx context.Context, username string) (int64, error)
	// InsertDuel creates a pending duel. The live-duel check for both
	// participants and the insert happen atomically.
	InsertDuel(ctx context.Context, challengerID, opponentID int64, createdAt, expiresAt time.Time) (int64, error)
	// UpdateDuelStatus sets the status, optionally only when the current status
	// is one of expected. It returns the number of rows changed.
	UpdateDuelStatus(ctx context.Context, duelID int64, to domain.DuelStatus, expected ...domain.DuelStatus) (int64, error)
	FindDuel(ctx context.Context, duelID int64) (*domain.Duel, error)
	FindLiveDuelForAccount(ctx context.Context, accountID int64) (*domain.Duel, error)
	// BulkExpireStale expires every pending duel, and every accepted duel still
	// waiting on a report, whose expiry is at or before now.
	BulkExpireStale(ctx context.Context, now time.Time) (int64, error)
	// StaleReportedDuels lists accepted duels at or past expiry that already
	// hold both reports. The sweep settles these instead of expiring them.
	StaleReportedDuels(ctx context.Context, now time.Time) ([]int64, error)
	InsertReportIfAbsent(ctx context.Context, report domain.DuelReport) (bool, error)
	ListReports(ctx context.Context, duelID int64) ([]domain.DuelReport, error)
	// FinalizeDuel and MarkInvalid only apply to accepted duels.
	FinalizeDuel(ctx context.Context, duelID, winnerID, loserID int64) (bool, error)
	MarkInvalid(ctx context.Context, duelID int64) (bool, error)
}

// AccountStore persists credentials and profiles.
type AccountStore interface {
	CreateAccount(ctx context.Context, profile domain.Profile, passwordHash string) (int64, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	FindAccountID(ctx context.Context, username string) (int64, error)
	GetProfile(ctx context.Context, username string) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, username string, patch domain.ProfilePatch, savedAt *time.Time) error
	ResetRanks(ctx context.Context) error
}

// FriendStore persists the directed friend graph. A row (from, to) is a
// request sent by from; accepted rows are friendships in both directions.
type FriendStore interface {
	FriendLists(ctx context.Context, accountID int64) (domain.FriendLists, error)
	FindFriendRow(ctx context.Context, fromID, toID int64) (domain.FriendStatus, error)
	InsertFriendRequest(ctx context.Context, fromID, toID int64) error
	AcceptFriendRequest(ctx context.Context, fromID, toID int64) (int64, error)
	DeleteFriendRequest(ctx context.Context, fromID, toID int64) error
	DeleteFriendship(ctx context.Context, a, b int64) error
}

// TournamentStore persists tournaments. At most one is active at a time.
type TournamentStore interface {
	ActiveTournament(ctx context.Context) (*domain.Tournament, error)
	FinishedTournaments(ctx context.Context) ([]domain.Tournament, error)
	InsertTournament(ctx context.Context, t domain.Tournament) (*domain.Tournament, error)
	UpdateActiveTournament(ctx context.Context, id int64, bracket json.RawMessage, winner *string) error
	FinishTournament(ctx context.Context, id int64, winnerAvatar string, at time.Time) error
}

// Store is everything the service layer needs.
type Store interface {
	DuelStore
	AccountStore
	FriendStore
	TournamentStore
	Ping(ctx context.Context) error
	Close()
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
