package exporter

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/bjjsocial/bjjsocial/internal/community"
)

// teammateLimit caps the teammates table of a school position export.
const teammateLimit = 10

type profileView struct {
	FirstName       string
	LastName        string
	Initials        string
	ProfileImageURL string
	BeltClass       string
	Belt            string
	Stripes         int
	Location        string
	YearsTraining   string
	Competitions    int
	Wins            int
	Losses          int
	Followers       int
	Posts           int
	Bio             string
	School          string
	Instructor      string
	Weight          string
	WeightClass     string
}

func newProfileView(u community.User) profileView {
	return profileView{
		FirstName:       u.DisplayFirstName(),
		LastName:        u.DisplayLastName(),
		Initials:        Initials(u.FirstName, u.LastName),
		ProfileImageURL: u.ProfileImageURL,
		BeltClass:       BeltClass(u.Belt),
		Belt:            orDefault(u.Belt, community.BeltWhite),
		Stripes:         u.Stripes,
		Location:        orDefault(u.Location, "Location not specified"),
		YearsTraining:   orDefault(u.YearsTraining, "0"),
		Competitions:    u.Competitions,
		Wins:            u.Wins,
		Losses:          u.Losses,
		Followers:       u.FollowersCount,
		Posts:           u.PostsCount,
		Bio:             u.Bio,
		School:          u.School,
		Instructor:      u.Instructor,
		Weight:          u.Weight,
		WeightClass:     orDefault(u.WeightClass, "N/A"),
	}
}

type leaderboardRow struct {
	SchoolRank  int
	GlobalRank  string
	Initials    string
	Name        string
	BeltClass   string
	Belt        string
	WeightClass string
	Gender      string
	AgeDivision string
	Points      int
	Wins        int
	Submissions int
}

func newLeaderboardRow(e community.SchoolLeaderboardEntry) leaderboardRow {
	return leaderboardRow{
		SchoolRank:  e.SchoolRank,
		GlobalRank:  rankLabel(e.Rank),
		Initials:    Initials(e.User.FirstName, e.User.LastName),
		Name:        e.User.FullName(),
		BeltClass:   BeltClass(e.Belt),
		Belt:        orDefault(e.Belt, community.BeltWhite),
		WeightClass: e.WeightClass,
		Gender:      e.Gender,
		AgeDivision: e.AgeDivision,
		Points:      e.Points,
		Wins:        e.Wins,
		Submissions: e.Submissions,
	}
}

type rankingRow struct {
	SchoolRank    int
	School        string
	TotalPoints   string
	TotalMembers  int
	TopRank       string
	AveragePoints int
}

func newRankingRow(r community.SchoolRanking) rankingRow {
	return rankingRow{
		SchoolRank:    r.SchoolRank,
		School:        r.School,
		TotalPoints:   humanize.Comma(int64(r.TotalPoints)),
		TotalMembers:  r.TotalMembers,
		TopRank:       rankLabel(r.TopRank),
		AveragePoints: r.AveragePoints(),
	}
}

type teammateRow struct {
	SchoolRank int
	Name       string
	IsCurrent  bool
	BeltClass  string
	Belt       string
	Points     int
}

type schoolPositionView struct {
	Profile   profileView
	Ranks     []community.SchoolRank
	Teammates []teammateRow
}

func newSchoolPositionView(u community.User, ranks []community.SchoolRank, leaderboard []community.SchoolLeaderboardEntry) schoolPositionView {
	if len(leaderboard) > teammateLimit {
		leaderboard = leaderboard[:teammateLimit]
	}

	teammates := make([]teammateRow, 0, len(leaderboard))
	for _, e := range leaderboard {
		teammates = append(teammates, teammateRow{
			SchoolRank: e.SchoolRank,
			Name:       e.User.FullName(),
			IsCurrent:  u.ID != "" && e.UserID == u.ID,
			BeltClass:  BeltClass(e.Belt),
			Belt:       orDefault(e.Belt, community.BeltWhite),
			Points:     e.Points,
		})
	}

	return schoolPositionView{
		Profile:   newProfileView(u),
		Ranks:     ranks,
		Teammates: teammates,
	}
}

// Initials returns the upper-cased first letters of both names, using "U"
// for a missing name.
func Initials(firstName, lastName string) string {
	return strings.ToUpper(firstRune(firstName) + firstRune(lastName))
}

func firstRune(s string) string {
	if s == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// BeltClass returns the badge class for a belt: "belt-" plus the lower-cased
// belt with its first space replaced by a hyphen. Missing belts are white.
func BeltClass(belt string) string {
	if belt == "" {
		belt = community.BeltWhite
	}
	return "belt-" + strings.Replace(strings.ToLower(belt), " ", "-", 1)
}

// Slug lower-cases s and replaces every whitespace run with an underscore.
// Path separators and control characters also become underscores, so a slug
// is always a single file name.
func Slug(s string) string {
	return fileName(strings.ToLower(s))
}

// fileName collapses whitespace runs to "_" and replaces '/', '\' and
// control characters with "_".
func fileName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		case r == '/', r == '\\', unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
		inSpace = false
	}
	return b.String()
}

func rankLabel(rank int) string {
	if rank <= 0 {
		return "N/A"
	}
	return "#" + strconv.Itoa(rank)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
