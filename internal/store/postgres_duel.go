package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/horus/internal/domain"
)

const duelSelect = `
	SELECT d.id, d.status, d.created_at, d.expires_at,
	       uf.id, uf.username, ut.id, ut.username,
	       uw.id, uw.username, ul.id, ul.username
	FROM duels d
	JOIN users uf ON uf.id = d.from_user
	JOIN users ut ON ut.id = d.to_user
	LEFT JOIN users uw ON uw.id = d.winner
	LEFT JOIN users ul ON ul.id = d.loser`

func scanDuel(row pgx.Row) (*domain.Duel, error) {
	var (
		d                     domain.Duel
		createdAt, expiresAt  int64
		winnerID, loserID     *int64
		winnerName, loserName *string
	)
	err := row.Scan(
		&d.ID, &d.Status, &createdAt, &expiresAt,
		&d.Challenger.ID, &d.Challenger.Username, &d.Opponent.ID, &d.Opponent.Username,
		&winnerID, &winnerName, &loserID, &loserName,
	)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = time.UnixMilli(createdAt)
	d.ExpiresAt = time.UnixMilli(expiresAt)
	if winnerID != nil && winnerName != nil {
		d.Winner = &domain.Participant{ID: *winnerID, Username: *winnerName}
	}
	if loserID != nil && loserName != nil {
		d.Loser = &domain.Participant{ID: *loserID, Username: *loserName}
	}
	return &d, nil
}

// InsertDuel creates a pending duel inside a transaction that first locks both
// participant rows in id order. Concurrent challenges touching either account
// serialize on those locks, so the live-duel checks below see every committed
// duel and the one-live-duel-per-account invariant holds.
func (s *PostgresStore) InsertDuel(ctx context.Context, challengerID, opponentID int64, createdAt, expiresAt time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Deterministic lock order prevents deadlocks between crossed challenges.
	acc1, acc2 := challengerID, opponentID
	if acc1 > acc2 {
		acc1, acc2 = opponentID, challengerID
	}
	for _, id := range []int64{acc1, acc2} {
		var locked int64
		err = tx.QueryRow(ctx, "SELECT id FROM users WHERE id = $1 FOR UPDATE", id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrNotFound
			}
			return 0, fmt.Errorf("lock acquisition failed: %w", err)
		}
	}

	busy := func(accountID int64) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM duels
				WHERE status IN ('pending', 'accepted')
				  AND (from_user = $1 OR to_user = $1)
			)`, accountID).Scan(&exists)
		return exists, err
	}

	if inDuel, err := busy(challengerID); err != nil {
		return 0, fmt.Errorf("live duel check failed: %w", err)
	} else if inDuel {
		return 0, ErrChallengerBusy
	}
	if inDuel, err := busy(opponentID); err != nil {
		return 0, fmt.Errorf("live duel check failed: %w", err)
	} else if inDuel {
		return 0, ErrOpponentBusy
	}

	var duelID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO duels (from_user, to_user, status, created_at, expires_at)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING id`,
		challengerID, opponentID, createdAt.UnixMilli(), expiresAt.UnixMilli(),
	).Scan(&duelID)
	if err != nil {
		return 0, fmt.Errorf("duel insert failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit failed: %w", err)
	}
	return duelID, nil
}

func (s *PostgresStore) UpdateDuelStatus(ctx context.Context, duelID int64, to domain.DuelStatus, expected ...domain.DuelStatus) (int64, error) {
	query := "UPDATE duels SET status = $1 WHERE id = $2"
	args := []any{string(to), duelID}
	if len(expected) > 0 {
		statuses := make([]string, len(expected))
		for i, st := range expected {
			statuses[i] = string(st)
		}
		query += " AND status = ANY($3)"
		args = append(args, statuses)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update duel status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) FindDuel(ctx context.Context, duelID int64) (*domain.Duel, error) {
	d, err := scanDuel(s.db.QueryRow(ctx, duelSelect+" WHERE d.id = $1", duelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find duel: %w", err)
	}
	return d, nil
}

// FindLiveDuelForAccount returns the most recently created live duel of the account.
func (s *PostgresStore) FindLiveDuelForAccount(ctx context.Context, accountID int64) (*domain.Duel, error) {
	d, err := scanDuel(s.db.QueryRow(ctx, duelSelect+`
		WHERE (d.from_user = $1 OR d.to_user = $1)
		  AND d.status IN ('pending', 'accepted')
		ORDER BY d.created_at DESC
		LIMIT 1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find live duel: %w", err)
	}
	return d, nil
}

// BulkExpireStale is a single conditional update; concurrent sweeps are harmless.
func (s *PostgresStore) BulkExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE duels d
		SET status = 'expired'
		WHERE d.expires_at <= $1
		  AND (
		    d.status = 'pending'
		    OR (d.status = 'accepted'
		        AND (SELECT COUNT(*) FROM duel_reports r WHERE r.duel_id = d.id) < 2)
		  )`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("expire stale duels: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) StaleReportedDuels(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.id
		FROM duels d
		WHERE d.status = 'accepted'
		  AND d.expires_at <= $1
		  AND (SELECT COUNT(*) FROM duel_reports r WHERE r.duel_id = d.id) >= 2
		ORDER BY d.id`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list stale reported duels: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan stale reported duels: %w", err)
	}
	return ids, nil
}

// InsertReportIfAbsent relies on the (duel_id, user_id) primary key; the first report wins.
func (s *PostgresStore) InsertReportIfAbsent(ctx context.Context, r domain.DuelReport) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO duel_reports (duel_id, user_id, result, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (duel_id, user_id) DO NOTHING`,
		r.DuelID, r.AccountID, string(r.Result), r.ReportedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, duelID int64) ([]domain.DuelReport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT dr.duel_id, dr.user_id, u.username, dr.result, dr.created_at
		FROM duel_reports dr
		JOIN users u ON u.id = dr.user_id
		WHERE dr.duel_id = $1`, duelID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.DuelReport
	for rows.Next() {
		var (
			r          domain.DuelReport
			reportedAt int64
		)
		if err := rows.Scan(&r.DuelID, &r.AccountID, &r.Username, &r.Result, &reportedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.ReportedAt = time.UnixMilli(reportedAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) FinalizeDuel(ctx context.Context, duelID, winnerID, loserID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE duels
		SET status = 'finished', winner = $2, loser = $3
		WHERE id = $1 AND status = 'accepted'`, duelID, winnerID, loserID)
	if err != nil {
		return false, fmt.Errorf("finalize duel: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) MarkInvalid(ctx context.Context, duelID int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		"UPDATE duels SET status = 'invalid' WHERE id = $1 AND status = 'accepted'", duelID)
	if err != nil {
		return false, fmt.Errorf("mark duel invalid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
