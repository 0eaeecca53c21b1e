// Package restapi provides a community.Source backed by the BJJ Social REST API.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/provider/resilience"
)

const (
	// UpstreamName identifies the platform API in the resilience registry.
	UpstreamName = "bjj-api"

	// maxRankPages bounds how many global leaderboard pages are scanned to
	// resolve global ranks for a school leaderboard.
	maxRankPages = 20
)

// ClientConfig holds configuration for the REST client.
type ClientConfig struct {
	// BaseURL is the platform origin, e.g. https://bjj.social.
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient resilience.HTTPDoer

	// Registry receives the default resilient client, if one is created.
	Registry *resilience.Registry

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	Logger zerolog.Logger
}

// Client reads community records from the platform REST API.
type Client struct {
	baseURL    string
	httpClient resilience.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new REST client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(UpstreamName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "restapi").Logger(),
	}
}

// API response types.

type userData struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ProfileImageURL string `json:"profileImageUrl"`
	Belt            string `json:"belt"`
	Stripes         int    `json:"stripes"`
	Weight          string `json:"weight"`
	WeightClass     string `json:"weightClass"`
	School          string `json:"school"`
	Instructor      string `json:"instructor"`
	YearsTraining   string `json:"yearsTraining"`
	Competitions    int    `json:"competitions"`
	Wins            int    `json:"wins"`
	Losses          int    `json:"losses"`
	Bio             string `json:"bio"`
	Location        string `json:"location"`
	AgeDivision     string `json:"ageDivision"`
	Gender          string `json:"gender"`
	FollowersCount  int    `json:"followersCount"`
	FollowingCount  int    `json:"followingCount"`
	PostsCount      int    `json:"postsCount"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type entryData struct {
	ID          string    `json:"id"`
	Season      string    `json:"season"`
	Ruleset     string    `json:"ruleset"`
	IsGi        bool      `json:"isGi"`
	Belt        string    `json:"belt"`
	WeightClass string    `json:"weightClass"`
	AgeDivision string    `json:"ageDivision"`
	Gender      string    `json:"gender"`
	UserID      string    `json:"userId"`
	Points      int       `json:"points"`
	Submissions int       `json:"submissions"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	LastUpdated string    `json:"lastUpdated"`
	User        *userData `json:"user"`
}

type leaderboardResponse struct {
	Data    []entryData `json:"data"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"hasMore"`
}

type schoolRankingData struct {
	School       string `json:"school"`
	TotalPoints  int    `json:"totalPoints"`
	AthleteCount int    `json:"athleteCount"`
}

type schoolRankingsResponse struct {
	Data    []schoolRankingData `json:"data"`
	HasMore bool                `json:"hasMore"`
}

type searchResponse struct {
	Results []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"results"`
}

// GetUser retrieves a user profile.
func (c *Client) GetUser(ctx context.Context, id string) (*community.User, error) {
	var data userData
	if err := c.getJSON(ctx, "/api/users/"+url.PathEscape(id), nil, &data); err != nil {
		return nil, err
	}
	u := toUser(data)
	return &u, nil
}

// ListUsers returns users matching the filter. The API has no listing endpoint,
// so users are resolved through search (Query) or leaderboard membership.
func (c *Client) ListUsers(ctx context.Context, filter community.UserFilter) ([]community.User, error) {
	limit := community.NormalizeLimit(filter.Limit)

	if filter.Query != "" {
		return c.searchUsers(ctx, filter, limit)
	}

	var entries []community.LeaderboardEntry
	var err error
	if filter.School != "" {
		entries, err = c.leaderboardPages(ctx, "/api/schools/"+url.PathEscape(filter.School)+"/leaderboard", community.LeaderboardFilter{}, maxRankPages)
	} else {
		entries, err = c.leaderboardPages(ctx, "/api/leaderboard", community.LeaderboardFilter{}, maxRankPages)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var users []community.User
	for _, e := range entries {
		if _, ok := seen[e.UserID]; ok || e.User.ID == "" {
			continue
		}
		seen[e.UserID] = struct{}{}
		users = append(users, e.User)
		if len(users) == limit {
			break
		}
	}
	return users, nil
}

func (c *Client) searchUsers(ctx context.Context, filter community.UserFilter, limit int) ([]community.User, error) {
	var result searchResponse
	if err := c.getJSON(ctx, "/api/search", url.Values{"q": {filter.Query}}, &result); err != nil {
		return nil, err
	}

	var users []community.User
	for _, r := range result.Results {
		if r.Type != "user" {
			continue
		}
		u, err := c.GetUser(ctx, r.ID)
		if errors.Is(err, community.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.School != "" && !strings.EqualFold(u.School, filter.School) {
			continue
		}
		users = append(users, *u)
		if len(users) == limit {
			break
		}
	}
	return users, nil
}

// SchoolLeaderboard returns the school's entries. School ranks follow the API
// order; global ranks are resolved from the division leaderboard.
func (c *Client) SchoolLeaderboard(ctx context.Context, school string, filter community.LeaderboardFilter) ([]community.SchoolLeaderboardEntry, error) {
	limit := community.NormalizeLimit(filter.Limit)

	var result leaderboardResponse
	query := leaderboardQuery(filter)
	query.Set("limit", strconv.Itoa(limit))
	if err := c.getJSON(ctx, "/api/schools/"+url.PathEscape(school)+"/leaderboard", query, &result); err != nil {
		return nil, err
	}

	members := make([]community.LeaderboardEntry, 0, len(result.Data))
	for _, d := range result.Data {
		members = append(members, toEntry(d))
	}

	if len(members) > 0 {
		if err := c.resolveGlobalRanks(ctx, filter, members); err != nil {
			c.logger.Warn().Err(err).Str("school", school).Msg("global ranks unavailable")
		}
	}
	return community.RankWithinSchool(members), nil
}

// SchoolRankings returns schools ranked by total points. The API does not
// report the best individual rank, so TopRank is left unknown.
func (c *Client) SchoolRankings(ctx context.Context, filter community.LeaderboardFilter) ([]community.SchoolRanking, error) {
	query := url.Values{"limit": {strconv.Itoa(community.NormalizeLimit(filter.Limit))}}
	if filter.Season != "" {
		query.Set("season", filter.Season)
	}

	var result schoolRankingsResponse
	if err := c.getJSON(ctx, "/api/schools/rankings", query, &result); err != nil {
		return nil, err
	}

	rankings := make([]community.SchoolRanking, 0, len(result.Data))
	for i, d := range result.Data {
		rankings = append(rankings, community.SchoolRanking{
			School:       d.School,
			SchoolRank:   i + 1,
			TotalPoints:  d.TotalPoints,
			TotalMembers: d.AthleteCount,
		})
	}
	return rankings, nil
}

// UserSchoolRanks returns the standing of the user's school within the first
// MaxLimit ranked schools.
func (c *Client) UserSchoolRanks(ctx context.Context, userID string, filter community.LeaderboardFilter) ([]community.SchoolRank, error) {
	u, err := c.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.School == "" {
		return nil, nil
	}

	filter.Limit = community.MaxLimit
	rankings, err := c.SchoolRankings(ctx, filter)
	if err != nil {
		return nil, err
	}

	rank, ok := community.SchoolRankFor(rankings, u.School)
	if !ok {
		return nil, nil
	}
	return []community.SchoolRank{rank}, nil
}

// resolveGlobalRanks scans the division leaderboard and sets Rank on members.
func (c *Client) resolveGlobalRanks(ctx context.Context, filter community.LeaderboardFilter, members []community.LeaderboardEntry) error {
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.ID] = i
	}

	filter.Limit = community.MaxLimit
	remaining := len(members)
	for page := 1; page <= maxRankPages && remaining > 0; page++ {
		result, err := c.leaderboardPage(ctx, "/api/leaderboard", filter, page)
		if err != nil {
			return err
		}
		for i, d := range result.Data {
			if j, ok := index[d.ID]; ok && members[j].Rank == 0 {
				members[j].Rank = (page-1)*result.Limit + i + 1
				remaining--
			}
		}
		if !result.HasMore {
			break
		}
	}
	return nil
}

// leaderboardPages fetches up to maxPages pages of a leaderboard endpoint.
func (c *Client) leaderboardPages(ctx context.Context, path string, filter community.LeaderboardFilter, maxPages int) ([]community.LeaderboardEntry, error) {
	filter.Limit = community.MaxLimit

	var entries []community.LeaderboardEntry
	for page := 1; page <= maxPages; page++ {
		result, err := c.leaderboardPage(ctx, path, filter, page)
		if err != nil {
			return nil, err
		}
		for _, d := range result.Data {
			entries = append(entries, toEntry(d))
		}
		if !result.HasMore {
			break
		}
	}
	return entries, nil
}

func (c *Client) leaderboardPage(ctx context.Context, path string, filter community.LeaderboardFilter, page int) (*leaderboardResponse, error) {
	query := leaderboardQuery(filter)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(community.NormalizeLimit(filter.Limit)))

	var result leaderboardResponse
	if err := c.getJSON(ctx, path, query, &result); err != nil {
		return nil, err
	}
	if result.Limit <= 0 {
		result.Limit = community.NormalizeLimit(filter.Limit)
	}
	return &result, nil
}

// getJSON performs a GET request and decodes the JSON body into out.
// A 404 maps to the not-found error of the endpoint.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound(path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func notFound(path string) error {
	switch {
	case strings.HasPrefix(path, "/api/users/"):
		return community.ErrUserNotFound
	case strings.HasPrefix(path, "/api/schools/") && strings.HasSuffix(path, "/leaderboard"):
		return community.ErrSchoolNotFound
	}
	return fmt.Errorf("%s: %w", path, community.ErrNotFound)
}

func leaderboardQuery(f community.LeaderboardFilter) url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("season", f.Season)
	set("ruleset", f.Ruleset)
	set("belt", f.Belt)
	set("weightClass", f.WeightClass)
	set("ageDivision", f.AgeDivision)
	set("gender", f.Gender)
	if f.IsGi != nil {
		q.Set("isGi", strconv.FormatBool(*f.IsGi))
	}
	return q
}

func toUser(d userData) community.User {
	return community.User{
		ID:              d.ID,
		Email:           d.Email,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		ProfileImageURL: d.ProfileImageURL,
		Belt:            d.Belt,
		Stripes:         d.Stripes,
		Weight:          d.Weight,
		WeightClass:     d.WeightClass,
		School:          d.School,
		Instructor:      d.Instructor,
		YearsTraining:   d.YearsTraining,
		Competitions:    d.Competitions,
		Wins:            d.Wins,
		Losses:          d.Losses,
		Bio:             d.Bio,
		Location:        d.Location,
		AgeDivision:     d.AgeDivision,
		Gender:          d.Gender,
		FollowersCount:  d.FollowersCount,
		FollowingCount:  d.FollowingCount,
		PostsCount:      d.PostsCount,
		CreatedAt:       parseTimestamp(d.CreatedAt),
		UpdatedAt:       parseTimestamp(d.UpdatedAt),
	}
}

func toEntry(d entryData) community.LeaderboardEntry {
	e := community.LeaderboardEntry{
		ID:          d.ID,
		Season:      d.Season,
		Ruleset:     d.Ruleset,
		IsGi:        d.IsGi,
		Belt:        d.Belt,
		WeightClass: d.WeightClass,
		AgeDivision: d.AgeDivision,
		Gender:      d.Gender,
		UserID:      d.UserID,
		Points:      d.Points,
		Submissions: d.Submissions,
		Wins:        d.Wins,
		Losses:      d.Losses,
		LastUpdated: parseTimestamp(d.LastUpdated),
	}
	if d.User != nil {
		e.User = toUser(*d.User)
	}
	return e
}

// timestampLayouts covers RFC 3339 and the zone-less ISO form the API emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Ensure Client implements community.Source interface.
var _ community.Source = (*Client)(nil)
