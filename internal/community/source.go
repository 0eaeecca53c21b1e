package community

import (
	"context"
	"sort"
	"strings"
)

// Pagination defaults mirror the platform leaderboard endpoints.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// UserFilter selects users for community exports.
type UserFilter struct {
	// School restricts results to members of one school.
	School string

	// Query matches against first or last name (case-insensitive).
	Query string

	// Limit caps the result size (default DefaultLimit, max MaxLimit).
	Limit int
}

// LeaderboardFilter narrows leaderboard queries to a division.
type LeaderboardFilter struct {
	Season      string
	Ruleset     string
	IsGi        *bool
	Belt        string
	WeightClass string
	AgeDivision string
	Gender      string
	Limit       int
}

// Source provides the records that exports are rendered from.
type Source interface {
	// GetUser retrieves a user by ID. Returns ErrUserNotFound when absent.
	GetUser(ctx context.Context, id string) (*User, error)

	// ListUsers returns users matching the filter.
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)

	// SchoolLeaderboard returns a school's entries ranked by points.
	SchoolLeaderboard(ctx context.Context, school string, filter LeaderboardFilter) ([]SchoolLeaderboardEntry, error)

	// SchoolRankings returns schools ranked by total points.
	SchoolRankings(ctx context.Context, filter LeaderboardFilter) ([]SchoolRanking, error)

	// UserSchoolRanks returns the standing of the user's school.
	UserSchoolRanks(ctx context.Context, userID string, filter LeaderboardFilter) ([]SchoolRank, error)
}

// NormalizeLimit clamps a requested limit to [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Matches reports whether the entry belongs to the filtered division.
func (f LeaderboardFilter) Matches(e LeaderboardEntry) bool {
	if f.Season != "" && e.Season != f.Season {
		return false
	}
	if f.Ruleset != "" && e.Ruleset != f.Ruleset {
		return false
	}
	if f.IsGi != nil && e.IsGi != *f.IsGi {
		return false
	}
	if f.Belt != "" && e.Belt != f.Belt {
		return false
	}
	if f.WeightClass != "" && e.WeightClass != f.WeightClass {
		return false
	}
	if f.AgeDivision != "" && e.AgeDivision != f.AgeDivision {
		return false
	}
	if f.Gender != "" && e.Gender != f.Gender {
		return false
	}
	return true
}

// RankEntries orders entries by points (descending) and assigns 1-based global
// ranks. Ties keep their input order.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankWithinSchool assigns school ranks to globally ranked entries of one school.
// Entries must already be ordered by points.
func RankWithinSchool(entries []LeaderboardEntry) []SchoolLeaderboardEntry {
	out := make([]SchoolLeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = SchoolLeaderboardEntry{LeaderboardEntry: e, SchoolRank: i + 1}
	}
	return out
}

// RankSchools aggregates ranked entries per school (taken from the entry's user)
// and orders schools by total points. Entries without a school are ignored.
func RankSchools(entries []LeaderboardEntry) []SchoolRanking {
	type agg struct {
		ranking SchoolRanking
		members map[string]struct{}
		order   int
	}

	bySchool := make(map[string]*agg)
	for _, e := range entries {
		school := e.User.School
		if school == "" {
			continue
		}
		a, ok := bySchool[school]
		if !ok {
			a = &agg{
				ranking: SchoolRanking{School: school},
				members: make(map[string]struct{}),
				order:   len(bySchool),
			}
			bySchool[school] = a
		}
		a.ranking.TotalPoints += e.Points
		a.members[e.UserID] = struct{}{}
		if e.Rank > 0 && (a.ranking.TopRank == 0 || e.Rank < a.ranking.TopRank) {
			a.ranking.TopRank = e.Rank
		}
	}

	aggs := make([]*agg, 0, len(bySchool))
	for _, a := range bySchool {
		a.ranking.TotalMembers = len(a.members)
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].ranking.TotalPoints != aggs[j].ranking.TotalPoints {
			return aggs[i].ranking.TotalPoints > aggs[j].ranking.TotalPoints
		}
		return aggs[i].order < aggs[j].order
	})

	rankings := make([]SchoolRanking, len(aggs))
	for i, a := range aggs {
		a.ranking.SchoolRank = i + 1
		rankings[i] = a.ranking
	}
	return rankings
}

// SchoolRankFor finds a school in ranked results.
func SchoolRankFor(rankings []SchoolRanking, school string) (SchoolRank, bool) {
	for _, r := range rankings {
		if strings.EqualFold(r.School, school) {
			return SchoolRank{School: r.School, SchoolRank: r.SchoolRank, TotalMembers: r.TotalMembers}, true
		}
	}
	return SchoolRank{}, false
}
