package community

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemorySource is an in-memory implementation of Source.
// This is intended for testing and for exporting records loaded from files.
type InMemorySource struct {
	mu      sync.RWMutex
	users   map[string]User
	entries []LeaderboardEntry
}

// NewInMemorySource creates an empty in-memory source.
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{
		users: make(map[string]User),
	}
}

// PutUser stores or replaces a user.
func (s *InMemorySource) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
}

// AddEntry appends a leaderboard entry. The entry's User is resolved from the
// stored users at query time.
func (s *InMemorySource) AddEntry(e LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
}

// GetUser retrieves a user by ID.
func (s *InMemorySource) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// ListUsers returns users matching the filter, ordered by last then first name.
func (s *InMemorySource) ListUsers(_ context.Context, filter UserFilter) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	var users []User
	for _, u := range s.users {
		if filter.School != "" && !strings.EqualFold(u.School, filter.School) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), query) &&
			!strings.Contains(strings.ToLower(u.LastName), query) {
			continue
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].ID < users[j].ID
	})

	if limit := NormalizeLimit(filter.Limit); len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// SchoolLeaderboard returns the school's entries with global and school ranks.
func (s *InMemorySource) SchoolLeaderboard(_ context.Context, school string, filter LeaderboardFilter) ([]SchoolLeaderboardEntry, error) {
	ranked := s.rankedEntries(filter)

	var members []LeaderboardEntry
	for _, e := range ranked {
		if strings.EqualFold(e.User.School, school) {
			members = append(members, e)
		}
	}

	if limit := NormalizeLimit(filter.Limit); len(members) > limit {
		members = members[:limit]
	}
	return RankWithinSchool(members), nil
}

// SchoolRankings returns all schools ranked by total points.
func (s *InMemorySource) SchoolRankings(_ context.Context, filter LeaderboardFilter) ([]SchoolRanking, error) {
	rankings := RankSchools(s.rankedEntries(filter))
	if limit := NormalizeLimit(filter.Limit); len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

// UserSchoolRanks returns the standing of the user's school, if ranked.
func (s *InMemorySource) UserSchoolRanks(ctx context.Context, userID string, filter LeaderboardFilter) ([]SchoolRank, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.School == "" {
		return nil, nil
	}

	rank, ok := SchoolRankFor(RankSchools(s.rankedEntries(filter)), u.School)
	if !ok {
		return nil, nil
	}
	return []SchoolRank{rank}, nil
}

// rankedEntries returns filtered entries with users resolved and global ranks set.
func (s *InMemorySource) rankedEntries(filter LeaderboardFilter) []LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []LeaderboardEntry
	for _, e := range s.entries {
		if !filter.Matches(e) {
			continue
		}
		if u, ok := s.users[e.UserID]; ok {
			e.User = u
		}
		matched = append(matched, e)
	}
	return RankEntries(matched)
}

// Ensure InMemorySource implements Source interface.
var _ Source = (*InMemorySource)(nil)
