package domain

import (
	"encoding/json"
	"time"
)

// DuelStatus is the lifecycle state of a duel.
// pending and accepted are live; expired, invalid and finished are terminal.
type DuelStatus string

const (
	DuelPending  DuelStatus = "pending"
	DuelAccepted DuelStatus = "accepted"
	DuelExpired  DuelStatus = "expired"
	DuelInvalid  DuelStatus = "invalid"
	DuelFinished DuelStatus = "finished"
)

func (s DuelStatus) IsLive() bool {
	return s == DuelPending || s == DuelAccepted
}

// Participant is an account reference with its display name resolved.
type Participant struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Duel is a challenge between two accounts.
type Duel struct {
	ID         int64        `json:"id"`
	Challenger Participant  `json:"challenger"`
	Opponent   Participant  `json:"opponent"`
	Status     DuelStatus   `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Winner     *Participant `json:"winner,omitempty"`
	Loser      *Participant `json:"loser,omitempty"`
}

// Involves reports whether the account is one of the two participants.
func (d *Duel) Involves(accountID int64) bool {
	return d.Challenger.ID == accountID || d.Opponent.ID == accountID
}

// ParticipantByName resolves a username to one of the duel's participants.
func (d *Duel) ParticipantByName(username string) (Participant, bool) {
	switch username {
	case d.Challenger.Username:
		return d.Challenger, true
	case d.Opponent.Username:
		return d.Opponent, true
	}
	return Participant{}, false
}

// DuelResult is a participant's claimed outcome.
type DuelResult string

const (
	ResultWin  DuelResult = "win"
	ResultLoss DuelResult = "loss"
)

func (r DuelResult) Valid() bool {
	return r == ResultWin || r == ResultLoss
}

// DuelReport is one account's claimed outcome for one duel.
// At most one report exists per (DuelID, AccountID); reports are never mutated.
type DuelReport struct {
	DuelID     int64      `json:"duel_id"`
	AccountID  int64      `json:"account_id"`
	Username   string     `json:"username"`
	Result     DuelResult `json:"result"`
	ReportedAt time.Time  `json:"reported_at"`
}

// Rank is the competitive standing stored on a profile.
type Rank struct {
	Index       int `json:"index"`
	Points      int `json:"points"`
	TotalPoints int `json:"totalpoints"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
}

// Profile is the persisted account state of a player.
type Profile struct {
	ID           int64           `json:"-"`
	Username     string          `json:"username"`
	Email        string          `json:"-"`
	XP           int64           `json:"xp"`
	Level        int             `json:"level"`
	HoursPlayed  float64         `json:"hoursPlayed"`
	Achievements json.RawMessage `json:"achievements"`
	Titles       json.RawMessage `json:"titles"`
	Avatar       string          `json:"avatar"`
	Status       string          `json:"status"`
	IsAdmin      bool            `json:"isAdmin"`
	AdminLevel   int             `json:"AdminLevel"`
	Country      string          `json:"country"`
	Rank         Rank            `json:"rank"`
	Joined       time.Time       `json:"joined"`
	CurrentTitle *string         `json:"currentTitle"`
	LastSave     *time.Time      `json:"lastSave"`
	ChatStyle    string          `json:"chatStyle"`
	ShowRank     bool            `json:"showRank"`
}

// NewProfile returns the starting state of a freshly registered account.
func NewProfile(username, email string, joined time.Time) Profile {
	return Profile{
		Username:     username,
		Email:        email,
		Level:        1,
		Achievements: json.RawMessage(`[]`),
		Titles:       json.RawMessage(`[]`),
		Avatar:       "default",
		Status:       "online",
		ChatStyle:    "rounded",
		Country:      "default",
		Joined:       joined,
		ShowRank:     true,
	}
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	XP           *int64          `json:"xp,omitempty"`
	Level        *int            `json:"level,omitempty"`
	HoursPlayed  *float64        `json:"hoursPlayed,omitempty"`
	Achievements json.RawMessage `json:"achievements,omitempty"`
	Titles       json.RawMessage `json:"titles,omitempty"`
	Avatar       *string         `json:"avatar,omitempty"`
	Status       *string         `json:"status,omitempty"`
	ChatStyle    *string         `json:"chatStyle,omitempty"`
	IsAdmin      *bool           `json:"isAdmin,omitempty"`
	AdminLevel   *int            `json:"AdminLevel,omitempty"`
	Country      *string         `json:"country,omitempty"`
	Rank         *Rank           `json:"rank,omitempty"`
	CurrentTitle *string         `json:"currentTitle,omitempty"`
	ShowRank     *bool           `json:"showRank,omitempty"`
}

func (p ProfilePatch) Empty() bool {
	return p.XP == nil && p.Level == nil && p.HoursPlayed == nil &&
		p.Achievements == nil && p.Titles == nil && p.Avatar == nil &&
		p.Status == nil && p.ChatStyle == nil && p.IsAdmin == nil &&
		p.AdminLevel == nil && p.Country == nil && p.Rank == nil &&
		p.CurrentTitle == nil && p.ShowRank == nil
}

// Apply copies the set fields of the patch onto the profile.
func (p ProfilePatch) Apply(dst *Profile) {
	if p.XP != nil {
		dst.XP = *p.XP
	}
	if p.Level != nil {
		dst.Level = *p.Level
	}
	if p.HoursPlayed != nil {
		dst.HoursPlayed = *p.HoursPlayed
	}
	if p.Achievements != nil {
		dst.Achievements = p.Achievements
	}
	if p.Titles != nil {
		dst.Titles = p.Titles
	}
	if p.Avatar != nil {
		dst.Avatar = *p.Avatar
	}
	if p.Status != nil {
		dst.Status = *p.Status
	}
	if p.ChatStyle != nil {
		dst.ChatStyle = *p.ChatStyle
	}
	if p.IsAdmin != nil {
		dst.IsAdmin = *p.IsAdmin
	}
	if p.AdminLevel != nil {
		dst.AdminLevel = *p.AdminLevel
	}
	if p.Country != nil {
		dst.Country = *p.Country
	}
	if p.Rank != nil {
		dst.Rank = *p.Rank
	}
	if p.CurrentTitle != nil {
		title := *p.CurrentTitle
		dst.CurrentTitle = &title
	}
	if p.ShowRank != nil {
		dst.ShowRank = *p.ShowRank
	}
}

// FriendStatus is the state of a directed friend row.
type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
)

// FriendLists groups an account's relations by direction.
type FriendLists struct {
	Friends  []string `json:"friends"`
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// Tournament is a single-elimination bracket. The bracket, players and rewards
// are owned by the client and stored opaquely.
type Tournament struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Size         int             `json:"size"`
	Players      json.RawMessage `json:"players"`
	Rewards      json.RawMessage `json:"rewards"`
	Bracket      json.RawMessage `json:"bracket"`
	Trophy       string          `json:"trophy"`
	Status       string          `json:"status"`
	Winner       *string         `json:"winner"`
	WinnerAvatar *string         `json:"winnerAvatar"`
	FinishedAt   *time.Time      `json:"finishedAt"`
}

const (
	TournamentActive   = "active"
	TournamentFinished = "finished"
	DefaultTrophy      = "Trophy_0"
)
