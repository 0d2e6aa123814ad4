package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/horus/internal/domain"
)

//go:embed schema.sql
var Schema string

const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// Connect parses the connection string, opens a pool and pings it.
func Connect(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewPostgresStore(pool), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// ApplySchema creates any missing tables and indexes.
func (s *PostgresStore) ApplySchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// jsonArg renders raw JSON for a ::jsonb parameter, mapping absent to fallback.
func jsonArg(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}

// FindAccountID resolves a username to its account id.
func (s *PostgresStore) FindAccountID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE username = $1", username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("find account: %w", err)
	}
	return id, nil
}

// CreateAccount inserts credentials and the starting profile.
// A taken username or email yields ErrAlreadyExists.
func (s *PostgresStore) CreateAccount(ctx context.Context, p domain.Profile, passwordHash string) (int64, error) {
	rank, err := json.Marshal(p.Rank)
	if err != nil {
		return 0, err
	}
	var email *string
	if p.Email != "" {
		email = &p.Email
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (
			username, password, email,
			xp, level, hours_played,
			achievements, titles, avatar,
			status, chat_style, is_admin,
			admin_level, country, rank, show_rank, joined
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7::jsonb, $8::jsonb, $9,
			$10, $11, $12,
			$13, $14, $15::jsonb, $16, $17
		)
		RETURNING id`,
		p.Username, passwordHash, email,
		p.XP, p.Level, p.HoursPlayed,
		jsonArg(p.Achievements, "[]"), jsonArg(p.Titles, "[]"), p.Avatar,
		p.Status, p.ChatStyle, p.IsAdmin,
		p.AdminLevel, p.Country, string(rank), p.ShowRank, p.Joined,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRow(ctx, "SELECT password FROM users WHERE username = $1", username).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load password: %w", err)
	}
	return hash, nil
}

const profileColumns = `
	id, username, COALESCE(email, ''), xp, level, hours_played,
	achievements, titles, avatar, status, is_admin, admin_level,
	country, rank, joined, current_title, last_save, chat_style, show_rank`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.Email, &p.XP, &p.Level, &p.HoursPlayed,
		&p.Achievements, &p.Titles, &p.Avatar, &p.Status, &p.IsAdmin, &p.AdminLevel,
		&p.Country, &p.Rank, &p.Joined, &p.CurrentTitle, &p.LastSave, &p.ChatStyle, &p.ShowRank,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, username string) (*domain.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile ordered by username.
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.db.Query(ctx, "SELECT "+profileColumns+" FROM users ORDER BY username ASC")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateProfile writes the set fields of patch. savedAt, when given, stamps last_save.
func (s *PostgresStore) UpdateProfile(ctx context.Context, username string, patch domain.ProfilePatch, savedAt *time.Time) error {
	args := []any{username}
	var sets []string
	set := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}

	if patch.XP != nil {
		set("xp", *patch.XP, "")
	}
	if patch.Level != nil {
		set("level", *patch.Level, "")
	}
	if patch.HoursPlayed != nil {
		set("hours_played", *patch.HoursPlayed, "")
	}
	if patch.Achievements != nil {
		set("achievements", string(patch.Achievements), "::jsonb")
	}
	if patch.Titles != nil {
		set("titles", string(patch.Titles), "::jsonb")
	}
	if patch.Avatar != nil {
		set("avatar", *patch.Avatar, "")
	}
	if patch.Status != nil {
		set("status", *patch.Status, "")
	}
	if patch.ChatStyle != nil {
		set("chat_style", *patch.ChatStyle, "")
	}
	if patch.IsAdmin != nil {
		set("is_admin", *patch.IsAdmin, "")
	}
	if patch.AdminLevel != nil {
		set("admin_level", *patch.AdminLevel, "")
	}
	if patch.Country != nil {
		set("country", *patch.Country, "")
	}
	if patch.Rank != nil {
		rank, err := json.Marshal(patch.Rank)
		if err != nil {
			return err
		}
		set("rank", string(rank), "::jsonb")
	}
	if patch.CurrentTitle != nil {
		set("current_title", *patch.CurrentTitle, "")
	}
	if patch.ShowRank != nil {
		set("show_rank", *patch.ShowRank, "")
	}
	if savedAt != nil {
		set("last_save", *savedAt, "")
	}
	if len(sets) == 0 {
		return nil
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE username = $1", args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetRanks zeroes the competitive standing of every account.
func (s *PostgresStore) ResetRanks(ctx context.Context) error {
	rank, err := json.Marshal(domain.Rank{})
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, "UPDATE users SET rank = $1::jsonb", string(rank)); err != nil {
		return fmt.Errorf("reset ranks: %w", err)
	}
	return nil
}
