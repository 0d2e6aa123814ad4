package service

import (
	"context"
	"sort"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/models"
	"github.com/punchamoorthee/horus/internal/store"
)

// RankTier describes one step of the competitive ladder; Rank.Index points into RankTiers.
type RankTier struct {
	Key       string
	Color     string
	Threshold int
	Badge     string
}

var RankTiers = []RankTier{
	{Key: "Saiyan Warrior", Color: "#a76d00ff", Threshold: 80, Badge: "assets/icons/Badges/Low_0.png"},
	{Key: "Elite Saiyan Warrior", Color: "#b1b1b1ff", Threshold: 80, Badge: "assets/icons/Badges/Low_1.png"},
	{Key: "Conquistador", Color: "#00dbf8ff", Threshold: 80, Badge: "assets/icons/Badges/Mid_0.png"},
	{Key: "Catastrofe", Color: "#00ff40ff", Threshold: 80, Badge: "assets/icons/Badges/Mid_1.png"},
	{Key: "Gran Maestro", Color: "#9b59b6", Threshold: 80, Badge: "assets/icons/Badges/Mid_2.png"},
	{Key: "Señor de la Guerra I", Color: "#e04242", Threshold: 120, Badge: "assets/icons/Badges/Superior_0.png"},
	{Key: "Señor de la Guerra II", Color: "#ff3333", Threshold: 200, Badge: "assets/icons/Badges/Superior_1.png"},
	{Key: "Legenda", Color: "#ffd700", Threshold: 300, Badge: "assets/icons/Badges/Superior_2.png"},
	{Key: "Dios de la Guerra", Color: "#ffffff", Threshold: 1000, Badge: "assets/icons/Badges/Superior_God.png"},
}

type RankingService struct {
	store store.AccountStore
}

func NewRankingService(s store.AccountStore) *RankingService {
	return &RankingService{store: s}
}

func (s *RankingService) Global(ctx context.Context) ([]models.RankingEntry, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return RankProfiles(profiles), nil
}

// RankProfiles orders profiles by rank tier, then total points, then wins,
// all descending, and numbers them from 1.
func RankProfiles(profiles []domain.Profile) []models.RankingEntry {
	sorted := make([]domain.Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rank, sorted[j].Rank
		if a.Index != b.Index {
			return a.Index > b.Index
		}
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		return a.Wins > b.Wins
	})

	entries := make([]models.RankingEntry, len(sorted))
	for i, p := range sorted {
		entry := models.RankingEntry{
			Name:        p.Username,
			RankIndex:   p.Rank.Index,
			Points:      p.Rank.Points,
			TotalPoints: p.Rank.TotalPoints,
			HoursPlayed: p.HoursPlayed,
			Position:    i + 1,
		}
		if p.Country != "default" && p.Country != "" {
			flag := p.Country
			entry.Flag = &flag
		}
		if p.Rank.Index >= 0 && p.Rank.Index < len(RankTiers) {
			badge := RankTiers[p.Rank.Index].Badge
			entry.RankIcon = &badge
		}
		entries[i] = entry
	}
	return entries
}
