// Package community holds the BJJ Social records that exports are built from:
// athlete profiles, leaderboard entries and school aggregates.
//
// Records are read-only snapshots. Nothing in this package or in the exporter
// mutates a record after it has been fetched from a Source.
package community

import (
	"errors"
	"fmt"
	"time"
)

// Source errors. ErrUserNotFound and ErrSchoolNotFound both match ErrNotFound.
var (
	ErrNotFound       = errors.New("not found")
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrSchoolNotFound = fmt.Errorf("school %w", ErrNotFound)
)

// Belt ranks used across the platform.
const (
	BeltWhite  = "White"
	BeltBlue   = "Blue"
	BeltPurple = "Purple"
	BeltBrown  = "Brown"
	BeltBlack  = "Black"
	BeltCoral  = "Coral"
	BeltRed    = "Red"
)

// User is a community member profile.
// Empty strings and zero counters mean the value was never provided.
type User struct {
	ID              string `json:"id" yaml:"id"`
	Email           string `json:"email,omitempty" yaml:"email"`
	FirstName       string `json:"firstName,omitempty" yaml:"firstName"`
	LastName        string `json:"lastName,omitempty" yaml:"lastName"`
	ProfileImageURL string `json:"profileImageUrl,omitempty" yaml:"profileImageUrl"`

	Belt          string `json:"belt,omitempty" yaml:"belt"`
	Stripes       int    `json:"stripes,omitempty" yaml:"stripes"`
	Weight        string `json:"weight,omitempty" yaml:"weight"`
	WeightClass   string `json:"weightClass,omitempty" yaml:"weightClass"`
	School        string `json:"school,omitempty" yaml:"school"`
	Instructor    string `json:"instructor,omitempty" yaml:"instructor"`
	YearsTraining string `json:"yearsTraining,omitempty" yaml:"yearsTraining"`
	Competitions  int    `json:"competitions,omitempty" yaml:"competitions"`
	Wins          int    `json:"wins,omitempty" yaml:"wins"`
	Losses        int    `json:"losses,omitempty" yaml:"losses"`
	Bio           string `json:"bio,omitempty" yaml:"bio"`
	Location      string `json:"location,omitempty" yaml:"location"`
	AgeDivision   string `json:"ageDivision,omitempty" yaml:"ageDivision"`
	Gender        string `json:"gender,omitempty" yaml:"gender"`

	FollowersCount int `json:"followersCount,omitempty" yaml:"followersCount"`
	FollowingCount int `json:"followingCount,omitempty" yaml:"followingCount"`
	PostsCount     int `json:"postsCount,omitempty" yaml:"postsCount"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt"`
}

// DisplayFirstName returns the first name or "Unknown".
func (u User) DisplayFirstName() string {
	if u.FirstName == "" {
		return "Unknown"
	}
	return u.FirstName
}

// DisplayLastName returns the last name or "User".
func (u User) DisplayLastName() string {
	if u.LastName == "" {
		return "User"
	}
	return u.LastName
}

// FullName returns "<first> <last>" with the display fallbacks applied.
func (u User) FullName() string {
	return u.DisplayFirstName() + " " + u.DisplayLastName()
}

// LeaderboardEntry is a competitor's standing in one division.
type LeaderboardEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Season      string    `json:"season" yaml:"season"`
	Ruleset     string    `json:"ruleset" yaml:"ruleset"`
	IsGi        bool      `json:"isGi" yaml:"isGi"`
	Belt        string    `json:"belt" yaml:"belt"`
	WeightClass string    `json:"weightClass" yaml:"weightClass"`
	AgeDivision string    `json:"ageDivision" yaml:"ageDivision"`
	Gender      string    `json:"gender" yaml:"gender"`
	UserID      string    `json:"userId" yaml:"userId"`
	Points      int       `json:"points" yaml:"points"`
	Submissions int       `json:"submissions" yaml:"submissions"`
	Wins        int       `json:"wins" yaml:"wins"`
	Losses      int       `json:"losses" yaml:"losses"`
	LastUpdated time.Time `json:"lastUpdated,omitempty" yaml:"lastUpdated"`

	// Rank is the 1-based global position; 0 when it was not computed.
	Rank int `json:"rank,omitempty" yaml:"rank"`

	User User `json:"user" yaml:"user"`
}

// SchoolLeaderboardEntry is a leaderboard entry ranked within the athlete's school.
type SchoolLeaderboardEntry struct {
	LeaderboardEntry `yaml:",inline"`

	SchoolRank int `json:"schoolRank" yaml:"schoolRank"`
}

// SchoolRanking is a school's aggregate standing.
type SchoolRanking struct {
	School       string `json:"school" yaml:"school"`
	SchoolRank   int    `json:"schoolRank" yaml:"schoolRank"`
	TotalPoints  int    `json:"totalPoints" yaml:"totalPoints"`
	TotalMembers int    `json:"totalMembers" yaml:"totalMembers"`

	// TopRank is the best global rank held by any member; 0 when unknown.
	TopRank int `json:"topRank" yaml:"topRank"`
}

// AveragePoints returns total points per member, rounded, or 0 without members.
func (s SchoolRanking) AveragePoints() int {
	if s.TotalMembers <= 0 {
		return 0
	}
	return int(float64(s.TotalPoints)/float64(s.TotalMembers) + 0.5)
}

// SchoolRank is the standing of one user's school.
type SchoolRank struct {
	School       string `json:"school" yaml:"school"`
	SchoolRank   int    `json:"schoolRank" yaml:"schoolRank"`
	TotalMembers int    `json:"totalMembers" yaml:"totalMembers"`
}
