package models

import (
	"encoding/json"

	"github.com/punchamoorthee/horus/internal/domain"
)

// ChallengeRequest is the payload of POST /duel/send.
type ChallengeRequest struct {
	Username   string `json:"username"`
	ToUsername string `json:"toUsername"`
}

// DuelActionRequest is shared by accept, reject and expire.
type DuelActionRequest struct {
	Username string `json:"username"`
	DuelID   int64  `json:"duelId"`
}

// ReportRequest is the payload of POST /duel/report.
type ReportRequest struct {
	DuelID int64             `json:"duelId"`
	Player string            `json:"player"`
	Result domain.DuelResult `json:"result"`
}

// Duel is the wire form of a duel; instants are epoch milliseconds.
type Duel struct {
	ID        int64             `json:"id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Status    domain.DuelStatus `json:"status"`
	CreatedAt int64             `json:"createdAt"`
	ExpiresAt int64             `json:"expiresAt"`
}

func NewDuel(d *domain.Duel) *Duel {
	if d == nil {
		return nil
	}
	return &Duel{
		ID:        d.ID,
		From:      d.Challenger.Username,
		To:        d.Opponent.Username,
		Status:    d.Status,
		CreatedAt: d.CreatedAt.UnixMilli(),
		ExpiresAt: d.ExpiresAt.UnixMilli(),
	}
}

// CheckResponse is the body of GET /duel/check/{duelId}.
type CheckResponse struct {
	Finished bool   `json:"finished"`
	Invalid  bool   `json:"invalid,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Loser    string `json:"loser,omitempty"`
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type SaveProfileRequest struct {
	Username string              `json:"username"`
	Data     domain.ProfilePatch `json:"data"`
}

type UpdateFieldRequest struct {
	Username string          `json:"username"`
	Field    string          `json:"field"`
	Value    json.RawMessage `json:"value"`
}

type SetStatusRequest struct {
	Username string `json:"username"`
	Status   string `json:"status"`
}

// RankingEntry is one row of the global leaderboard.
type RankingEntry struct {
	Name        string  `json:"name"`
	RankIndex   int     `json:"rankIndex"`
	Points      int     `json:"points"`
	TotalPoints int     `json:"totalpoint"`
	Flag        *string `json:"flag"`
	RankIcon    *string `json:"rankIcon"`
	HoursPlayed float64 `json:"hoursPlayed"`
	Position    int     `json:"position"`
}

// UserSummary is the row shape of GET /users/get.
type UserSummary struct {
	Username string      `json:"username"`
	Avatar   string      `json:"avatar"`
	Status   string      `json:"status"`
	Country  string      `json:"country"`
	Level    int         `json:"level"`
	XP       int64       `json:"xp"`
	Rank     domain.Rank `json:"rank"`
	IsAdmin  bool        `json:"isAdmin"`
}

// FriendRequest covers every /friends/* body; each route reads the fields it needs.
type FriendRequest struct {
	Username string `json:"username"`
	ToUser   string `json:"toUser"`
	FromUser string `json:"fromUser"`
	Friend   string `json:"friend"`
}

type CreateTournamentRequest struct {
	Name    string          `json:"name"`
	Size    int             `json:"size"`
	Players json.RawMessage `json:"players"`
	Rewards json.RawMessage `json:"rewards"`
	Bracket json.RawMessage `json:"bracket"`
	Trophy  string          `json:"trophy"`
}

type UpdateTournamentRequest struct {
	ID      int64           `json:"id"`
	Bracket json.RawMessage `json:"bracket"`
	Winner  *string         `json:"winner"`
}

// TournamentsResponse is the body of GET /tournament/get.
type TournamentsResponse struct {
	ActiveTournament *domain.Tournament  `json:"activeTournament"`
	PastTournaments  []domain.Tournament `json:"pastTournaments"`
}
