package exporter_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

var exportedAt = time.Date(2024, 3, 14, 21, 5, 0, 0, time.UTC)

func newTestExporter(t *testing.T, s exporter.Sink, mutate ...func(*exporter.Config)) *exporter.Exporter {
	t.Helper()

	cfg := exporter.Config{
		Sink:       s,
		Logger:     zerolog.Nop(),
		Clock:      func() time.Time { return exportedAt },
		Location:   time.UTC,
		BatchDelay: -1,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	e, err := exporter.New(cfg)
	require.NoError(t, err)
	return e
}

func onlyFile(t *testing.T, m *sink.Memory) (string, string) {
	t.Helper()

	files := m.Files()
	require.Len(t, files, 1)
	assert.Equal(t, exporter.ContentType, files[0].ContentType)
	return files[0].Name, string(files[0].Body)
}

func sampleUser() community.User {
	return community.User{
		ID:              "u1",
		FirstName:       "John",
		LastName:        "Doe",
		ProfileImageURL: "https://cdn.example.com/john.png",
		Belt:            "Brown",
		Stripes:         2,
		Weight:          "82kg",
		WeightClass:     "Middleweight",
		School:          "Gracie Barra",
		Instructor:      "Carlos",
		YearsTraining:   "7",
		Competitions:    12,
		Wins:            9,
		Losses:          3,
		Bio:             "Loves leg locks.",
		Location:        "Austin, TX",
		FollowersCount:  150,
		PostsCount:      42,
	}
}

func TestNew_RequiresSink(t *testing.T) {
	_, err := exporter.New(exporter.Config{})
	assert.ErrorIs(t, err, exporter.ErrNoSink)
}

func TestExportUserProfile(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportUserProfile(context.Background(), sampleUser(), exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "John_Doe_profile.html", name)
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "<title>John Doe - BJJ Profile</title>")
	assert.Contains(t, body, "<h1>John Doe - BJJ Profile</h1>")
	assert.Contains(t, body, "Exported from BJJ Social Platform")
	assert.Contains(t, body, "Exported on 3/14/2024, 9:05:00 PM")
	assert.Contains(t, body, `<img src="https://cdn.example.com/john.png" alt="John Doe"`)
	assert.Contains(t, body, `<span class="belt-badge belt-brown">Brown Belt • 2 Stripes</span>`)
	assert.Contains(t, body, "Austin, TX")
	assert.Contains(t, body, "<h3>About</h3>")
	assert.Contains(t, body, "<p><strong>School:</strong> Gracie Barra</p>")
	assert.Contains(t, body, "<p><strong>Weight:</strong> 82kg (Middleweight)</p>")
	assert.Contains(t, body, `<span class="stat-value">150</span>`)
	assert.Contains(t, body, ".profile-card {")
	assert.Contains(t, body, `<body class="">`)
}

func TestExportUserProfile_MissingFields(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportUserProfile(context.Background(), community.User{ID: "u9"}, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "Unknown_User_profile.html", name)
	assert.Contains(t, body, "<title>Unknown User - BJJ Profile</title>")
	assert.Contains(t, body, "UU")
	assert.Contains(t, body, `<span class="belt-badge belt-white">White Belt </span>`)
	assert.Contains(t, body, "Location not specified")
	assert.Contains(t, body, `<span class="stat-value">0</span>`)
	assert.NotContains(t, body, "<h3>About</h3>")
	assert.NotContains(t, body, "Training Details")
	assert.NotContains(t, body, "<img")
}

func TestExportUserProfile_WhitespaceInNames(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	u := community.User{FirstName: "Mary Ann", LastName: "Van  Dyke"}
	require.NoError(t, e.ExportUserProfile(context.Background(), u, exporter.Options{}))

	name, _ := onlyFile(t, m)
	assert.Equal(t, "Mary_Ann_Van_Dyke_profile.html", name)
}

func TestExportUserProfile_EscapesText(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	u := community.User{
		FirstName: `<b>"A&B"</b>`,
		LastName:  "Smith",
		Bio:       `<script>alert("x")</script>`,
		School:    "Tom & Jerry's",
	}
	require.NoError(t, e.ExportUserProfile(context.Background(), u, exporter.Options{}))

	_, body := onlyFile(t, m)
	assert.NotContains(t, body, `<b>"A&B"</b>`)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;b&gt;&#34;A&amp;B&#34;&lt;/b&gt; Smith")
	assert.Contains(t, body, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;")
	assert.Contains(t, body, "Tom &amp; Jerry&#39;s")
}

func TestExportCommunityProfiles(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	users := []community.User{
		{FirstName: "Ana", LastName: "Silva"},
		{FirstName: "Ben", LastName: "<Lee>"},
		{FirstName: "Cy"},
	}
	require.NoError(t, e.ExportCommunityProfiles(context.Background(), users, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "bjj_community_3_profiles.html", name)
	assert.Contains(t, body, "<title>BJJ Community - 3 Profiles</title>")
	assert.Equal(t, 1, strings.Count(body, `<div class="community-grid">`))
	assert.Equal(t, 3, strings.Count(body, `<div class="profile-card">`))
	assert.Contains(t, body, "Ben &lt;Lee&gt;")
	assert.Contains(t, body, "Cy User")

	ana := strings.Index(body, "Ana Silva")
	cy := strings.Index(body, "Cy User")
	assert.True(t, ana >= 0 && cy > ana, "cards keep input order")
}

func TestExportCommunityProfiles_Empty(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportCommunityProfiles(context.Background(), nil, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "bjj_community_0_profiles.html", name)
	assert.Equal(t, 0, strings.Count(body, `<div class="profile-card">`))
}

func TestExportDataTable(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	data := exporter.TableData{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}
	require.NoError(t, e.ExportDataTable(context.Background(), data, "Monthly  Stats Report", exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "monthly_stats_report.html", name)
	assert.Contains(t, body, `<table class="table"><thead><tr><th>A</th><th>B</th></tr></thead><tbody><tr><td>1</td><td>2</td></tr></tbody></table>`)
	assert.Equal(t, 1, strings.Count(body, "<thead>"))
	assert.Equal(t, 2, strings.Count(body, "<th>"))
	assert.Equal(t, 2, strings.Count(body, "<td>"))
}

func TestExportDataTable_NoHeadersAndTrustedCells(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	data := exporter.TableData{Rows: [][]string{{"<em>x</em>"}, {"y"}}}
	require.NoError(t, e.ExportDataTable(context.Background(), data, "Raw", exporter.Options{}))

	_, body := onlyFile(t, m)
	assert.NotContains(t, body, "<thead>")
	assert.Contains(t, body, "<tr><td><em>x</em></td></tr><tr><td>y</td></tr>")
}

func TestExportCustomContent(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportCustomContent(context.Background(), "Seminar Notes", `<section id="n"><h2>Guard</h2></section>`, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "seminar_notes.html", name)
	assert.Contains(t, body, `<section id="n"><h2>Guard</h2></section>`)
}

func TestExport_Sanitizer(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m, func(c *exporter.Config) { c.Sanitizer = bluemonday.UGCPolicy() })

	require.NoError(t, e.ExportCustomContent(context.Background(), "Notes", `<p>ok</p><script>alert(1)</script>`, exporter.Options{}))
	data := exporter.TableData{Rows: [][]string{{`<img src=x onerror="alert(1)">`}}}
	require.NoError(t, e.ExportDataTable(context.Background(), data, "T", exporter.Options{}))

	files := m.Files()
	require.Len(t, files, 2)
	assert.Contains(t, string(files[0].Body), "<p>ok</p>")
	assert.NotContains(t, string(files[0].Body), "<script>")
	assert.NotContains(t, string(files[1].Body), "onerror")
}

func TestExport_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("dark theme", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		require.NoError(t, e.ExportCustomContent(ctx, "X", "<p>x</p>", exporter.Options{Theme: exporter.ThemeDark}))

		_, body := onlyFile(t, m)
		assert.Contains(t, body, `<body class="dark-theme">`)
	})

	t.Run("without default styles", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		opts := exporter.Options{IncludeStyles: exporter.Bool(false), Styles: "p { color: red; }"}
		require.NoError(t, e.ExportCustomContent(ctx, "X", "<p>x</p>", opts))

		_, body := onlyFile(t, m)
		assert.NotContains(t, body, ".profile-card {")
		assert.Contains(t, body, "<style>p { color: red; }</style>")
	})

	t.Run("extra styles appended", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		require.NoError(t, e.ExportCustomContent(ctx, "X", "<p>x</p>", exporter.Options{Styles: ".custom { margin: 0; }"}))

		_, body := onlyFile(t, m)
		defaults := strings.Index(body, ".profile-card {")
		extra := strings.Index(body, ".custom { margin: 0; }")
		assert.True(t, defaults >= 0 && extra > defaults)
	})

	t.Run("styles cannot close the style element", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		opts := exporter.Options{IncludeStyles: exporter.Bool(false), Styles: "</style><script>x</script>"}
		require.NoError(t, e.ExportCustomContent(ctx, "X", "", opts))

		_, body := onlyFile(t, m)
		assert.Equal(t, 1, strings.Count(body, "</style>"))
		assert.Contains(t, body, `<\/style><script>x<\/script></style>`)
	})
}

func TestExport_FooterUsesLocation(t *testing.T) {
	m := sink.NewMemory()
	tz := time.FixedZone("UTC-5", -5*60*60)
	e := newTestExporter(t, m, func(c *exporter.Config) { c.Location = tz })

	require.NoError(t, e.ExportCustomContent(context.Background(), "X", "", exporter.Options{}))

	_, body := onlyFile(t, m)
	assert.Contains(t, body, "Exported on 3/14/2024, 4:05:00 PM")
}

func schoolEntries(n int) []community.SchoolLeaderboardEntry {
	entries := make([]community.SchoolLeaderboardEntry, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("u%d", i)
		entries = append(entries, community.SchoolLeaderboardEntry{
			LeaderboardEntry: community.LeaderboardEntry{
				UserID:      id,
				Belt:        "Purple",
				WeightClass: "Light",
				Gender:      "Male",
				AgeDivision: "Adult",
				Points:      1000 - i*10,
				Wins:        10 - i%10,
				Submissions: i,
				Rank:        i * 2,
				User:        community.User{ID: id, FirstName: "Athlete", LastName: fmt.Sprintf("N%d", i)},
			},
			SchoolRank: i,
		})
	}
	return entries
}

func TestExportSchoolLeaderboard(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	entries := schoolEntries(2)
	entries[1].Rank = 0
	entries[1].Belt = "Black Belt"
	require.NoError(t, e.ExportSchoolLeaderboard(context.Background(), "Gracie Barra", entries, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "gracie_barra_school_leaderboard.html", name)
	assert.Contains(t, body, "<title>Gracie Barra - BJJ School Leaderboard</title>")
	assert.Contains(t, body, "<h2>Gracie Barra Leaderboard</h2>")
	assert.Contains(t, body, "<td><strong>#1</strong></td>")
	assert.Contains(t, body, "<td>#2</td>")
	assert.Contains(t, body, "<td>N/A</td>")
	assert.Contains(t, body, "Light • Male • Adult")
	assert.Contains(t, body, `class="belt-badge belt-black-belt"`)
	assert.Contains(t, body, "<td><strong>990</strong></td>")
	assert.Contains(t, body, "AN")
}

func TestExportSchoolRankings(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	rankings := []community.SchoolRanking{
		{School: "Atos", SchoolRank: 1, TotalPoints: 12345, TotalMembers: 4, TopRank: 1},
		{School: "Empty Gym", SchoolRank: 2},
	}
	require.NoError(t, e.ExportSchoolRankings(context.Background(), rankings, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "bjj_school_rankings.html", name)
	assert.Contains(t, body, "<title>BJJ School Rankings</title>")
	assert.Contains(t, body, "<td>12,345</td>")
	assert.Contains(t, body, "<td>#1</td>")
	assert.Contains(t, body, "<td>3086 avg points</td>")
	assert.Contains(t, body, "<td>N/A</td>")
	assert.Contains(t, body, "<td>0 avg points</td>")

	atos := strings.Index(body, "<strong>Atos</strong>")
	empty := strings.Index(body, "<strong>Empty Gym</strong>")
	assert.True(t, atos >= 0 && empty > atos)
}

func TestExportUserSchoolPosition(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	entries := schoolEntries(12)
	u := entries[2].User
	ranks := []community.SchoolRank{{School: "Atos", SchoolRank: 3, TotalMembers: 12}}

	require.NoError(t, e.ExportUserSchoolPosition(context.Background(), u, ranks, entries, exporter.Options{}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "Athlete_N3_school_performance.html", name)
	assert.Contains(t, body, "<title>Athlete N3 - School Performance</title>")
	assert.Contains(t, body, "<h3>School Performance</h3>")
	assert.Contains(t, body, `<span class="stat-value">#3</span>`)
	assert.Contains(t, body, `<span class="stat-value">12</span>`)
	assert.Contains(t, body, "<h3>School Teammates Rankings</h3>")
	assert.Equal(t, 10, strings.Count(body, "<tr style="))
	assert.Equal(t, 1, strings.Count(body, "background-color: #fef3c7; font-weight: bold;"))
	assert.Equal(t, 1, strings.Count(body, "(You)"))
	assert.NotContains(t, body, "Athlete N11")
}

func TestExportUserSchoolPosition_NoSchoolData(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportUserSchoolPosition(context.Background(), sampleUser(), nil, nil, exporter.Options{}))

	_, body := onlyFile(t, m)
	assert.NotContains(t, body, "<h3>School Performance</h3>")
	assert.NotContains(t, body, "School Teammates Rankings")
	assert.Contains(t, body, "John Doe")
}

func TestExport_DeliveryFailure(t *testing.T) {
	errFull := errors.New("disk full")
	e := newTestExporter(t, exporter.SinkFunc(func(context.Context, exporter.File) error { return errFull }))

	err := e.ExportUserProfile(context.Background(), sampleUser(), exporter.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errFull)
	assert.Contains(t, err.Error(), "exporter: deliver John_Doe_profile.html")
}

func TestExport_WithMetrics(t *testing.T) {
	metrics, err := exporter.NewMetrics()
	require.NoError(t, err)

	m := sink.NewMemory()
	e := newTestExporter(t, m, func(c *exporter.Config) { c.Metrics = metrics })

	require.NoError(t, e.ExportCustomContent(context.Background(), "X", "", exporter.Options{}))
	assert.Len(t, m.Files(), 1)
}

func TestWithSink(t *testing.T) {
	first, second := sink.NewMemory(), sink.NewMemory()
	e := newTestExporter(t, first)

	require.NoError(t, e.WithSink(second).ExportCustomContent(context.Background(), "X", "", exporter.Options{}))

	assert.Empty(t, first.Files())
	assert.Len(t, second.Files(), 1)
}

func TestExport_TitleOverride(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	require.NoError(t, e.ExportUserProfile(context.Background(), sampleUser(), exporter.Options{Title: "Season Card"}))

	name, body := onlyFile(t, m)
	assert.Equal(t, "John_Doe_profile.html", name)
	assert.Contains(t, body, "<title>Season Card</title>")
	assert.NotContains(t, body, "BJJ Profile</title>")
}

func TestWithSanitizer(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)
	content := `<p>ok</p><script>alert(1)</script>`

	require.NoError(t, e.WithSanitizer(bluemonday.UGCPolicy()).ExportCustomContent(context.Background(), "A", content, exporter.Options{}))
	require.NoError(t, e.ExportCustomContent(context.Background(), "B", content, exporter.Options{}))

	files := m.Files()
	require.Len(t, files, 2)
	assert.NotContains(t, string(files[0].Body), "alert(1)")
	assert.Contains(t, string(files[1].Body), "<script>alert(1)</script>")
}

func TestExportElement(t *testing.T) {
	page := `<html><body><div id="other">no</div><div id="stats"><h2>Stats</h2><p>Wins: 9</p></div></body></html>`

	t.Run("found", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		require.NoError(t, e.ExportElement(context.Background(), strings.NewReader(page), "stats", "My Stats", exporter.Options{}))

		name, body := onlyFile(t, m)
		assert.Equal(t, "my_stats.html", name)
		assert.Contains(t, body, "<h2>Stats</h2><p>Wins: 9</p>")
		assert.NotContains(t, body, "no</div>")
	})

	t.Run("missing element", func(t *testing.T) {
		m := sink.NewMemory()
		e := newTestExporter(t, m)

		err := e.ExportElement(context.Background(), strings.NewReader(page), "nope", "Missing", exporter.Options{})
		assert.NoError(t, err)
		assert.Empty(t, m.Files())
	})
}

func TestFindElementHTML(t *testing.T) {
	page := `<div id="a"><span id="b">inner &amp; text</span></div>`

	got, ok := exporter.FindElementHTML(strings.NewReader(page), "b")
	require.True(t, ok)
	assert.Equal(t, "inner &amp; text", got)

	got, ok = exporter.FindElementHTML(strings.NewReader(page), "a")
	require.True(t, ok)
	assert.Equal(t, `<span id="b">inner &amp; text</span>`, got)

	_, ok = exporter.FindElementHTML(strings.NewReader(page), "")
	assert.False(t, ok)
}

func TestExport_FileNamesFromFreeFormText(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, sink.NewDir(dir))
	ctx := context.Background()

	require.NoError(t, e.ExportSchoolLeaderboard(ctx, "AOJ/Atos", nil, exporter.Options{}))
	require.NoError(t, e.ExportDataTable(ctx, exporter.TableData{Headers: []string{"A"}}, `Wins\Losses 2024`, exporter.Options{}))
	require.NoError(t, e.ExportCustomContent(ctx, "Notes / March", "<p>x</p>", exporter.Options{}))
	require.NoError(t, e.ExportUserProfile(ctx, community.User{FirstName: "../Ana", LastName: "Sil\x00va"}, exporter.Options{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{
		"aoj_atos_school_leaderboard.html",
		"wins_losses_2024.html",
		"notes___march.html",
		".._Ana_Sil_va_profile.html",
	}, names)
}
