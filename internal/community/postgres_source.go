package community

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource is a PostgreSQL implementation of Source reading the
// platform's users and leaderboard tables.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL community source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

const userColumns = `
	u.id, u.email,
	COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.profile_image_url, ''),
	COALESCE(u.belt, ''), COALESCE(u.stripes, 0),
	COALESCE(u.weight, ''), COALESCE(u.weight_class, ''),
	COALESCE(u.school, ''), COALESCE(u.instructor, ''), COALESCE(u.years_training, ''),
	COALESCE(u.competitions, 0), COALESCE(u.wins, 0), COALESCE(u.losses, 0),
	COALESCE(u.bio, ''), COALESCE(u.location, ''),
	COALESCE(u.age_division, ''), COALESCE(u.gender, ''),
	COALESCE(u.followers_count, 0), COALESCE(u.following_count, 0), COALESCE(u.posts_count, 0),
	COALESCE(u.created_at, 'epoch'::timestamp), COALESCE(u.updated_at, 'epoch'::timestamp)`

// GetUser retrieves a user by ID.
func (s *PostgresSource) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		WHERE u.id = $1
	`

	var u User
	if err := s.pool.QueryRow(ctx, query, id).Scan(userDest(&u)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	normalizeTimes(&u)
	return &u, nil
}

// ListUsers returns users matching the filter, ordered by last then first name.
func (s *PostgresSource) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		WHERE ($1 = '' OR lower(u.school) = lower($1))
		  AND ($2 = '' OR u.first_name ILIKE '%' || $2 || '%' OR u.last_name ILIKE '%' || $2 || '%')
		ORDER BY u.last_name, u.first_name, u.id
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, filter.School, escapeLike(filter.Query), NormalizeLimit(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(userDest(&u)...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		normalizeTimes(&u)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SchoolLeaderboard returns the school's entries with global and school ranks.
// Global rank is computed across the whole filtered division.
func (s *PostgresSource) SchoolLeaderboard(ctx context.Context, school string, filter LeaderboardFilter) ([]SchoolLeaderboardEntry, error) {
	where, args := leaderboardWhere(filter)
	args = append(args, school, NormalizeLimit(filter.Limit))
	schoolArg := len(args) - 1
	limitArg := len(args)

	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT l.*, ROW_NUMBER() OVER (ORDER BY l.points DESC, l.id) AS global_rank
			FROM leaderboard l
			%s
		)
		SELECT
			r.id, r.season, r.ruleset, r.is_gi, r.belt, r.weight_class, r.age_division, r.gender,
			r.user_id, COALESCE(r.points, 0), COALESCE(r.submissions, 0),
			COALESCE(r.wins, 0), COALESCE(r.losses, 0),
			COALESCE(r.last_updated, 'epoch'::timestamp), r.global_rank,
			ROW_NUMBER() OVER (ORDER BY r.points DESC, r.id) AS school_rank,
			%s
		FROM ranked r
		JOIN users u ON u.id = r.user_id
		WHERE lower(u.school) = lower($%d)
		ORDER BY school_rank
		LIMIT $%d
	`, where, userColumns, schoolArg, limitArg)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query school leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []SchoolLeaderboardEntry
	for rows.Next() {
		var e SchoolLeaderboardEntry
		dest := []any{
			&e.ID, &e.Season, &e.Ruleset, &e.IsGi, &e.Belt, &e.WeightClass, &e.AgeDivision, &e.Gender,
			&e.UserID, &e.Points, &e.Submissions, &e.Wins, &e.Losses,
			&e.LastUpdated, &e.Rank, &e.SchoolRank,
		}
		dest = append(dest, userDest(&e.User)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan school leaderboard: %w", err)
		}
		e.LastUpdated = zeroEpoch(e.LastUpdated)
		normalizeTimes(&e.User)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate school leaderboard: %w", err)
	}
	return entries, nil
}

// SchoolRankings returns schools ranked by total points.
func (s *PostgresSource) SchoolRankings(ctx context.Context, filter LeaderboardFilter) ([]SchoolRanking, error) {
	return s.schoolRankings(ctx, filter, NormalizeLimit(filter.Limit))
}

// UserSchoolRanks returns the standing of the user's school, if ranked.
func (s *PostgresSource) UserSchoolRanks(ctx context.Context, userID string, filter LeaderboardFilter) ([]SchoolRank, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.School == "" {
		return nil, nil
	}

	// Unbounded so schools outside the first page still resolve.
	rankings, err := s.schoolRankings(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	rank, ok := SchoolRankFor(rankings, u.School)
	if !ok {
		return nil, nil
	}
	return []SchoolRank{rank}, nil
}

func (s *PostgresSource) schoolRankings(ctx context.Context, filter LeaderboardFilter, limit int) ([]SchoolRanking, error) {
	where, args := leaderboardWhere(filter)

	limitClause := ""
	if limit > 0 {
		args = append(args, limit)
		limitClause = fmt.Sprintf("LIMIT $%d", len(args))
	}

	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT l.user_id, COALESCE(l.points, 0) AS points,
				ROW_NUMBER() OVER (ORDER BY l.points DESC, l.id) AS global_rank
			FROM leaderboard l
			%s
		)
		SELECT
			u.school,
			ROW_NUMBER() OVER (ORDER BY SUM(r.points) DESC, u.school) AS school_rank,
			SUM(r.points)::bigint AS total_points,
			COUNT(DISTINCT r.user_id) AS total_members,
			MIN(r.global_rank) AS top_rank
		FROM ranked r
		JOIN users u ON u.id = r.user_id
		WHERE u.school IS NOT NULL AND u.school <> ''
		GROUP BY u.school
		ORDER BY school_rank
		%s
	`, where, limitClause)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query school rankings: %w", err)
	}
	defer rows.Close()

	var rankings []SchoolRanking
	for rows.Next() {
		var (
			r                    SchoolRanking
			rank, total, members int64
			topRank              int64
		)
		if err := rows.Scan(&r.School, &rank, &total, &members, &topRank); err != nil {
			return nil, fmt.Errorf("scan school ranking: %w", err)
		}
		r.SchoolRank = int(rank)
		r.TotalPoints = int(total)
		r.TotalMembers = int(members)
		r.TopRank = int(topRank)
		rankings = append(rankings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate school rankings: %w", err)
	}
	return rankings, nil
}

// leaderboardWhere builds the WHERE clause for a division filter on alias l.
func leaderboardWhere(f LeaderboardFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("l.%s = $%d", column, len(args)))
	}

	if f.Season != "" {
		add("season", f.Season)
	}
	if f.Ruleset != "" {
		add("ruleset", f.Ruleset)
	}
	if f.IsGi != nil {
		add("is_gi", *f.IsGi)
	}
	if f.Belt != "" {
		add("belt", f.Belt)
	}
	if f.WeightClass != "" {
		add("weight_class", f.WeightClass)
	}
	if f.AgeDivision != "" {
		add("age_division", f.AgeDivision)
	}
	if f.Gender != "" {
		add("gender", f.Gender)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func userDest(u *User) []any {
	return []any{
		&u.ID, &u.Email,
		&u.FirstName, &u.LastName, &u.ProfileImageURL,
		&u.Belt, &u.Stripes,
		&u.Weight, &u.WeightClass,
		&u.School, &u.Instructor, &u.YearsTraining,
		&u.Competitions, &u.Wins, &u.Losses,
		&u.Bio, &u.Location,
		&u.AgeDivision, &u.Gender,
		&u.FollowersCount, &u.FollowingCount, &u.PostsCount,
		&u.CreatedAt, &u.UpdatedAt,
	}
}

// normalizeTimes maps the epoch placeholder used for NULL timestamps back to zero.
func normalizeTimes(u *User) {
	u.CreatedAt = zeroEpoch(u.CreatedAt)
	u.UpdatedAt = zeroEpoch(u.UpdatedAt)
}

func zeroEpoch(t time.Time) time.Time {
	if t.Unix() == 0 {
		return time.Time{}
	}
	return t
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Ensure PostgresSource implements Source interface.
var _ Source = (*PostgresSource)(nil)
