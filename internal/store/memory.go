package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
)

type memAccount struct {
	profile      domain.Profile
	passwordHash string
}

type memDuel struct {
	id                   int64
	from, to             int64
	status               domain.DuelStatus
	createdAt, expiresAt time.Time
	winner, loser        int64
}

type reportKey struct {
	duelID, accountID int64
}

type friendKey struct {
	from, to int64
}

// MemoryStore is a mutex-guarded Store for development and tests. A single
// lock makes every method atomic, matching the guarantees the Postgres store
// gets from transactions and constraints.
type MemoryStore struct {
	mu sync.Mutex

	accounts   map[int64]*memAccount
	byName     map[string]int64
	duels      map[int64]*memDuel
	reports    map[reportKey]domain.DuelReport
	friends    map[friendKey]domain.FriendStatus
	tournament []*domain.Tournament

	nextAccount    int64
	nextDuel       int64
	nextTournament int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]*memAccount),
		byName:   make(map[string]int64),
		duels:    make(map[int64]*memDuel),
		reports:  make(map[reportKey]domain.DuelReport),
		friends:  make(map[friendKey]domain.FriendStatus),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) FindAccountID(ctx context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, p domain.Profile, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[p.Username]; taken {
		return 0, ErrAlreadyExists
	}
	if p.Email != "" {
		for _, acc := range m.accounts {
			if acc.profile.Email == p.Email {
				return 0, ErrAlreadyExists
			}
		}
	}

	m.nextAccount++
	p.ID = m.nextAccount
	m.accounts[p.ID] = &memAccount{profile: p, passwordHash: passwordHash}
	m.byName[p.Username] = p.ID
	return p.ID, nil
}

func (m *MemoryStore) PasswordHash(ctx context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return "", ErrNotFound
	}
	return m.accounts[id].passwordHash, nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, username string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.accounts[id].profile
	return &p, nil
}

func (m *MemoryStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profiles := make([]domain.Profile, 0, len(m.accounts))
	for _, acc := range m.accounts {
		profiles = append(profiles, acc.profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Username < profiles[j].Username })
	return profiles, nil
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, username string, patch domain.ProfilePatch, savedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if patch.Empty() && savedAt == nil {
		return nil
	}
	id, ok := m.byName[username]
	if !ok {
		return ErrNotFound
	}
	acc := m.accounts[id]
	patch.Apply(&acc.profile)
	if savedAt != nil {
		at := *savedAt
		acc.profile.LastSave = &at
	}
	return nil
}

func (m *MemoryStore) ResetRanks(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		acc.profile.Rank = domain.Rank{}
	}
	return nil
}

func (m *MemoryStore) participant(id int64) domain.Participant {
	return domain.Participant{ID: id, Username: m.accounts[id].profile.Username}
}

func (m *MemoryStore) toDomain(d *memDuel) *domain.Duel {
	out := &domain.Duel{
		ID:         d.id,
		Challenger: m.participant(d.from),
		Opponent:   m.participant(d.to),
		Status:     d.status,
		CreatedAt:  d.createdAt,
		ExpiresAt:  d.expiresAt,
	}
	if d.winner != 0 {
		w := m.participant(d.winner)
		out.Winner = &w
	}
	if d.loser != 0 {
		l := m.participant(d.loser)
		out.Loser = &l
	}
	return out
}

func (m *MemoryStore) liveDuelOf(accountID int64) bool {
	for _, d := range m.duels {
		if d.status.IsLive() && (d.from == accountID || d.to == accountID) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) InsertDuel(ctx context.Context, challengerID, opponentID int64, createdAt, expiresAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accounts[challengerID] == nil || m.accounts[opponentID] == nil {
		return 0, ErrNotFound
	}
	if m.liveDuelOf(challengerID) {
		return 0, ErrChallengerBusy
	}
	if m.liveDuelOf(opponentID) {
		return 0, ErrOpponentBusy
	}

	m.nextDuel++
	m.duels[m.nextDuel] = &memDuel{
		id:        m.nextDuel,
		from:      challengerID,
		to:        opponentID,
		status:    domain.DuelPending,
		createdAt: createdAt,
		expiresAt: expiresAt,
	}
	return m.nextDuel, nil
}

func (m *MemoryStore) UpdateDuelStatus(ctx context.Context, duelID int64, to domain.DuelStatus, expected ...domain.DuelStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.duels[duelID]
	if !ok {
		return 0, nil
	}
	if len(expected) > 0 {
		match := false
		for _, st := range expected {
			if d.status == st {
				match = true
				break
			}
		}
		if !match {
			return 0, nil
		}
	}
	d.status = to
	return 1, nil
}

func (m *MemoryStore) FindDuel(ctx context.Context, duelID int64) (*domain.Duel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.duels[duelID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.toDomain(d), nil
}

func (m *MemoryStore) FindLiveDuelForAccount(ctx context.Context, accountID int64) (*domain.Duel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *memDuel
	for _, d := range m.duels {
		if !d.status.IsLive() || (d.from != accountID && d.to != accountID) {
			continue
		}
		if latest == nil || d.createdAt.After(latest.createdAt) ||
			(d.createdAt.Equal(latest.createdAt) && d.id > latest.id) {
			latest = d
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return m.toDomain(latest), nil
}

func (m *MemoryStore) reportCount(duelID int64) int {
	n := 0
	for k := range m.reports {
		if k.duelID == duelID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) BulkExpireStale(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired int64
	for _, d := range m.duels {
		if d.expiresAt.After(now) {
			continue
		}
		if d.status == domain.DuelPending ||
			(d.status == domain.DuelAccepted && m.reportCount(d.id) < 2) {
			d.status = domain.DuelExpired
			expired++
		}
	}
	return expired, nil
}

func (m *MemoryStore) StaleReportedDuels(ctx context.Context, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for _, d := range m.duels {
		if d.status == domain.DuelAccepted && !d.expiresAt.After(now) && m.reportCount(d.id) >= 2 {
			ids = append(ids, d.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) InsertReportIfAbsent(ctx context.Context, r domain.DuelReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := reportKey{duelID: r.DuelID, accountID: r.AccountID}
	if _, exists := m.reports[key]; exists {
		return false, nil
	}
	if acc, ok := m.accounts[r.AccountID]; ok {
		r.Username = acc.profile.Username
	}
	m.reports[key] = r
	return true, nil
}

func (m *MemoryStore) ListReports(ctx context.Context, duelID int64) ([]domain.DuelReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reports []domain.DuelReport
	for k, r := range m.reports {
		if k.duelID == duelID {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func (m *MemoryStore) FinalizeDuel(ctx context.Context, duelID, winnerID, loserID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.duels[duelID]
	if !ok || d.status != domain.DuelAccepted {
		return false, nil
	}
	d.status = domain.DuelFinished
	d.winner, d.loser = winnerID, loserID
	return true, nil
}

func (m *MemoryStore) MarkInvalid(ctx context.Context, duelID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.duels[duelID]
	if !ok || d.status != domain.DuelAccepted {
		return false, nil
	}
	d.status = domain.DuelInvalid
	return true, nil
}

func (m *MemoryStore) usernames(match func(k friendKey, st domain.FriendStatus) (int64, bool)) []string {
	names := []string{}
	for k, st := range m.friends {
		if id, ok := match(k, st); ok {
			names = append(names, m.accounts[id].profile.Username)
		}
	}
	sort.Strings(names)
	return names
}

func (m *MemoryStore) FriendLists(ctx context.Context, accountID int64) (domain.FriendLists, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.FriendLists{
		Friends: m.usernames(func(k friendKey, st domain.FriendStatus) (int64, bool) {
			if st != domain.FriendAccepted {
				return 0, false
			}
			switch accountID {
			case k.from:
				return k.to, true
			case k.to:
				return k.from, true
			}
			return 0, false
		}),
		Incoming: m.usernames(func(k friendKey, st domain.FriendStatus) (int64, bool) {
			return k.from, st == domain.FriendPending && k.to == accountID
		}),
		Outgoing: m.usernames(func(k friendKey, st domain.FriendStatus) (int64, bool) {
			return k.to, st == domain.FriendPending && k.from == accountID
		}),
	}, nil
}

func (m *MemoryStore) FindFriendRow(ctx context.Context, fromID, toID int64) (domain.FriendStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.friends[friendKey{from: fromID, to: toID}]
	if !ok {
		return "", ErrNotFound
	}
	return st, nil
}

func (m *MemoryStore) InsertFriendRequest(ctx context.Context, fromID, toID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := friendKey{from: fromID, to: toID}
	if _, exists := m.friends[key]; exists {
		return ErrAlreadyExists
	}
	m.friends[key] = domain.FriendPending
	return nil
}

func (m *MemoryStore) AcceptFriendRequest(ctx context.Context, fromID, toID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := friendKey{from: fromID, to: toID}
	if _, exists := m.friends[key]; !exists {
		return 0, nil
	}
	m.friends[key] = domain.FriendAccepted
	return 1, nil
}

func (m *MemoryStore) DeleteFriendRequest(ctx context.Context, fromID, toID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := friendKey{from: fromID, to: toID}
	if m.friends[key] == domain.FriendPending {
		delete(m.friends, key)
	}
	return nil
}

func (m *MemoryStore) DeleteFriendship(ctx context.Context, a, b int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range []friendKey{{from: a, to: b}, {from: b, to: a}} {
		if m.friends[key] == domain.FriendAccepted {
			delete(m.friends, key)
		}
	}
	return nil
}

func copyTournament(t *domain.Tournament) *domain.Tournament {
	c := *t
	return &c
}

func (m *MemoryStore) ActiveTournament(ctx context.Context) (*domain.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tournament {
		if t.Status == domain.TournamentActive {
			return copyTournament(t), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FinishedTournaments(ctx context.Context) ([]domain.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	finished := []domain.Tournament{}
	for _, t := range m.tournament {
		if t.Status == domain.TournamentFinished {
			finished = append(finished, *t)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
	})
	return finished, nil
}

func (m *MemoryStore) InsertTournament(ctx context.Context, t domain.Tournament) (*domain.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tournament {
		if existing.Status == domain.TournamentActive {
			return nil, ErrAlreadyActive
		}
	}
	m.nextTournament++
	t.ID = m.nextTournament
	t.Status = domain.TournamentActive
	m.tournament = append(m.tournament, &t)
	return copyTournament(&t), nil
}

func (m *MemoryStore) UpdateActiveTournament(ctx context.Context, id int64, bracket json.RawMessage, winner *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tournament {
		if t.ID == id && t.Status == domain.TournamentActive {
			t.Bracket = bracket
			t.Winner = winner
		}
	}
	return nil
}

func (m *MemoryStore) FinishTournament(ctx context.Context, id int64, winnerAvatar string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tournament {
		if t.ID == id && t.Status == domain.TournamentActive {
			avatar, finishedAt := winnerAvatar, at
			t.Status = domain.TournamentFinished
			t.WinnerAvatar = &avatar
			t.FinishedAt = &finishedAt
		}
	}
	return nil
}
