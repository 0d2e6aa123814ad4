package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/horus/internal/domain"
)

func (s *PostgresStore) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *PostgresStore) FriendLists(ctx context.Context, accountID int64) (domain.FriendLists, error) {
	var (
		lists domain.FriendLists
		err   error
	)
	lists.Friends, err = s.queryNames(ctx, `
		SELECT u.username
		FROM friends f
		JOIN users u ON u.id =
		  CASE WHEN f.user_id = $1 THEN f.friend_id ELSE f.user_id END
		WHERE (f.user_id = $1 OR f.friend_id = $1)
		  AND f.status = 'accepted'`, accountID)
	if err != nil {
		return lists, fmt.Errorf("list friends: %w", err)
	}
	lists.Incoming, err = s.queryNames(ctx, `
		SELECT u.username
		FROM friends f
		JOIN users u ON u.id = f.user_id
		WHERE f.friend_id = $1 AND f.status = 'pending'`, accountID)
	if err != nil {
		return lists, fmt.Errorf("list incoming requests: %w", err)
	}
	lists.Outgoing, err = s.queryNames(ctx, `
		SELECT u.username
		FROM friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1 AND f.status = 'pending'`, accountID)
	if err != nil {
		return lists, fmt.Errorf("list outgoing requests: %w", err)
	}
	return lists, nil
}

// FindFriendRow returns the status of the directed row (from, to).
func (s *PostgresStore) FindFriendRow(ctx context.Context, fromID, toID int64) (domain.FriendStatus, error) {
	var status domain.FriendStatus
	err := s.db.QueryRow(ctx,
		"SELECT status FROM friends WHERE user_id = $1 AND friend_id = $2", fromID, toID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find friend row: %w", err)
	}
	return status, nil
}

func (s *PostgresStore) InsertFriendRequest(ctx context.Context, fromID, toID int64) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO friends (user_id, friend_id, status) VALUES ($1, $2, 'pending')", fromID, toID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

// AcceptFriendRequest accepts the request sent by fromID to toID.
func (s *PostgresStore) AcceptFriendRequest(ctx context.Context, fromID, toID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE friends SET status = 'accepted'
		WHERE user_id = $1 AND friend_id = $2`, fromID, toID)
	if err != nil {
		return 0, fmt.Errorf("accept friend request: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteFriendRequest(ctx context.Context, fromID, toID int64) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM friends
		WHERE user_id = $1 AND friend_id = $2 AND status = 'pending'`, fromID, toID)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFriendship(ctx context.Context, a, b int64) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM friends
		WHERE status = 'accepted'
		  AND ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))`, a, b)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

const tournamentColumns = `
	id, name, size, players, rewards, bracket, trophy, status, winner, winner_avatar, finished_at`

func scanTournament(row pgx.Row) (*domain.Tournament, error) {
	var t domain.Tournament
	err := row.Scan(&t.ID, &t.Name, &t.Size, &t.Players, &t.Rewards, &t.Bracket,
		&t.Trophy, &t.Status, &t.Winner, &t.WinnerAvatar, &t.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ActiveTournament(ctx context.Context) (*domain.Tournament, error) {
	t, err := scanTournament(s.db.QueryRow(ctx,
		"SELECT "+tournamentColumns+" FROM tournaments WHERE status = 'active' LIMIT 1"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("active tournament: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) FinishedTournaments(ctx context.Context) ([]domain.Tournament, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+tournamentColumns+" FROM tournaments WHERE status = 'finished' ORDER BY finished_at ASC")
	if err != nil {
		return nil, fmt.Errorf("finished tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []domain.Tournament{}
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}
	return tournaments, rows.Err()
}

// InsertTournament creates the active tournament; the partial unique index on
// status turns a second active tournament into ErrAlreadyActive.
func (s *PostgresStore) InsertTournament(ctx context.Context, t domain.Tournament) (*domain.Tournament, error) {
	created, err := scanTournament(s.db.QueryRow(ctx, `
		INSERT INTO tournaments (name, size, players, rewards, bracket, trophy, status)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, 'active')
		RETURNING `+tournamentColumns,
		t.Name, t.Size,
		jsonArg(t.Players, "[]"), jsonArg(t.Rewards, "{}"), jsonArg(t.Bracket, "{}"),
		t.Trophy,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("insert tournament: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateActiveTournament(ctx context.Context, id int64, bracket json.RawMessage, winner *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE tournaments
		SET bracket = $1::jsonb, winner = $2
		WHERE id = $3 AND status = 'active'`,
		jsonArg(bracket, "{}"), winner, id)
	if err != nil {
		return fmt.Errorf("update tournament: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishTournament(ctx context.Context, id int64, winnerAvatar string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE tournaments
		SET status = 'finished', winner_avatar = $1, finished_at = $2
		WHERE id = $3 AND status = 'active'`, winnerAvatar, at, id)
	if err != nil {
		return fmt.Errorf("finish tournament: %w", err)
	}
	return nil
}
