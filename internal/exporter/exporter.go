// Package exporter renders BJJ Social records into standalone HTML documents
// and hands each finished file to a Sink.
//
// Free-form values taken from records (names, bio, location, school, belt) are
// escaped. Table cells, custom content and extracted page elements are trusted
// HTML and are inserted verbatim unless a Sanitizer is configured.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/community"
)

// DefaultBatchDelay separates successive items of a batch.
const DefaultBatchDelay = 100 * time.Millisecond

// Kind names an export operation.
type Kind string

// Export kinds. The batch kinds double as the BatchItem.Kind values.
const (
	KindProfile           Kind = "profile"
	KindCommunity         Kind = "community"
	KindTable             Kind = "table"
	KindCustom            Kind = "custom"
	KindSchoolLeaderboard Kind = "school-leaderboard"
	KindSchoolRankings    Kind = "school-rankings"
	KindSchoolPosition    Kind = "school-position"
)

// ErrNoSink is returned by New when Config.Sink is nil.
var ErrNoSink = errors.New("exporter: sink is required")

// Config configures an Exporter.
type Config struct {
	// Sink receives every finished file.
	Sink Sink

	Logger zerolog.Logger

	// Clock stamps the "Exported on" footer. Default: time.Now.
	Clock func() time.Time

	// Location is the footer time zone. Default: time.Local.
	Location *time.Location

	// BatchDelay separates batch items. Default: DefaultBatchDelay.
	// A negative value disables the delay.
	BatchDelay time.Duration

	// Sanitizer, when set, filters trusted HTML inputs (table cells, custom
	// content, page elements) before they are inserted.
	Sanitizer *bluemonday.Policy

	Metrics *Metrics
}

// Exporter renders and delivers documents. It holds no mutable state and is
// safe for concurrent use if its Sink is.
type Exporter struct {
	sink       Sink
	logger     zerolog.Logger
	clock      func() time.Time
	location   *time.Location
	batchDelay time.Duration
	sanitizer  *bluemonday.Policy
	metrics    *Metrics
}

// New creates an Exporter.
func New(cfg Config) (*Exporter, error) {
	if cfg.Sink == nil {
		return nil, ErrNoSink
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	switch {
	case cfg.BatchDelay == 0:
		cfg.BatchDelay = DefaultBatchDelay
	case cfg.BatchDelay < 0:
		cfg.BatchDelay = 0
	}

	return &Exporter{
		sink:       cfg.Sink,
		logger:     cfg.Logger.With().Str("component", "exporter").Logger(),
		clock:      cfg.Clock,
		location:   cfg.Location,
		batchDelay: cfg.BatchDelay,
		sanitizer:  cfg.Sanitizer,
		metrics:    cfg.Metrics,
	}, nil
}

// WithSink returns a copy of e delivering to sink.
func (e *Exporter) WithSink(sink Sink) *Exporter {
	c := *e
	c.sink = sink
	return &c
}

// WithSanitizer returns a copy of e filtering trusted HTML inputs through p.
func (e *Exporter) WithSanitizer(p *bluemonday.Policy) *Exporter {
	c := *e
	c.sanitizer = p
	return &c
}

// ExportUserProfile exports one profile card.
func (e *Exporter) ExportUserProfile(ctx context.Context, u community.User, opts Options) error {
	content, err := renderFragment("profileCard", newProfileView(u))
	if err != nil {
		return err
	}

	title := u.FullName() + " - BJJ Profile"
	name := fileName(u.DisplayFirstName() + "_" + u.DisplayLastName() + "_profile.html")
	return e.export(ctx, KindProfile, name, Document{Title: title, Content: content}, opts)
}

// ExportCommunityProfiles exports a grid of profile cards in input order.
func (e *Exporter) ExportCommunityProfiles(ctx context.Context, users []community.User, opts Options) error {
	views := make([]profileView, 0, len(users))
	for _, u := range users {
		views = append(views, newProfileView(u))
	}

	content, err := renderFragment("community", views)
	if err != nil {
		return err
	}

	n := strconv.Itoa(len(users))
	title := "BJJ Community - " + n + " Profiles"
	name := "bjj_community_" + n + "_profiles.html"
	return e.export(ctx, KindCommunity, name, Document{Title: title, Content: content}, opts)
}

// TableData is a header row and body rows of trusted HTML cells.
type TableData struct {
	Headers []string   `json:"headers" yaml:"headers"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

type tableView struct {
	Headers []template.HTML
	Rows    [][]template.HTML
}

// ExportDataTable exports a table. The header row is omitted when there are
// no headers. Cells are inserted verbatim.
func (e *Exporter) ExportDataTable(ctx context.Context, data TableData, title string, opts Options) error {
	view := tableView{
		Headers: e.trustedAll(data.Headers),
		Rows:    make([][]template.HTML, 0, len(data.Rows)),
	}
	for _, row := range data.Rows {
		view.Rows = append(view.Rows, e.trustedAll(row))
	}

	content, err := renderFragment("table", view)
	if err != nil {
		return err
	}

	return e.export(ctx, KindTable, Slug(title)+".html", Document{Title: title, Content: content}, opts)
}

// ExportCustomContent wraps an HTML fragment in the page shell.
func (e *Exporter) ExportCustomContent(ctx context.Context, title, htmlContent string, opts Options) error {
	doc := Document{Title: title, Content: e.trusted(htmlContent)}
	return e.export(ctx, KindCustom, Slug(title)+".html", doc, opts)
}

// ExportSchoolLeaderboard exports a school's ranked members.
func (e *Exporter) ExportSchoolLeaderboard(ctx context.Context, school string, entries []community.SchoolLeaderboardEntry, opts Options) error {
	rows := make([]leaderboardRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, newLeaderboardRow(entry))
	}

	content, err := renderFragment("schoolLeaderboard", struct {
		School string
		Rows   []leaderboardRow
	}{School: school, Rows: rows})
	if err != nil {
		return err
	}

	title := school + " - BJJ School Leaderboard"
	name := Slug(school) + "_school_leaderboard.html"
	return e.export(ctx, KindSchoolLeaderboard, name, Document{Title: title, Content: content}, opts)
}

// ExportSchoolRankings exports the ranked list of schools.
func (e *Exporter) ExportSchoolRankings(ctx context.Context, rankings []community.SchoolRanking, opts Options) error {
	rows := make([]rankingRow, 0, len(rankings))
	for _, r := range rankings {
		rows = append(rows, newRankingRow(r))
	}

	content, err := renderFragment("schoolRankings", rows)
	if err != nil {
		return err
	}

	return e.export(ctx, KindSchoolRankings, "bjj_school_rankings.html", Document{Title: "BJJ School Rankings", Content: content}, opts)
}

// ExportUserSchoolPosition exports a profile with its school's standing and
// the top teammates, highlighting the user's own row.
func (e *Exporter) ExportUserSchoolPosition(ctx context.Context, u community.User, ranks []community.SchoolRank, leaderboard []community.SchoolLeaderboardEntry, opts Options) error {
	content, err := renderFragment("schoolPosition", newSchoolPositionView(u, ranks, leaderboard))
	if err != nil {
		return err
	}

	title := u.FullName() + " - School Performance"
	name := fileName(u.DisplayFirstName() + "_" + u.DisplayLastName() + "_school_performance.html")
	return e.export(ctx, KindSchoolPosition, name, Document{Title: title, Content: content}, opts)
}

// export renders doc and delivers it. Only delivery failures are returned.
func (e *Exporter) export(ctx context.Context, kind Kind, name string, doc Document, opts Options) error {
	if opts.Title != "" {
		doc.Title = opts.Title
	}

	body, err := Render(doc, opts, e.clock().In(e.location))
	if err != nil {
		return err
	}

	f := File{Name: name, ContentType: ContentType, Body: body}
	if err := e.sink.Deliver(ctx, f); err != nil {
		e.metrics.recordFailure(ctx, kind)
		e.logger.Error().Err(err).Str("kind", string(kind)).Str("file", name).Msg("delivery failed")
		return fmt.Errorf("exporter: deliver %s: %w", name, err)
	}

	e.metrics.recordDelivered(ctx, kind, len(body))
	e.logger.Debug().Str("kind", string(kind)).Str("file", name).Int("bytes", len(body)).Msg("document exported")
	return nil
}

func (e *Exporter) trusted(s string) template.HTML {
	if e.sanitizer != nil {
		s = e.sanitizer.Sanitize(s)
	}
	return template.HTML(s) //nolint:gosec // trusted input by contract, optionally sanitized
}

func (e *Exporter) trustedAll(cells []string) []template.HTML {
	out := make([]template.HTML, 0, len(cells))
	for _, c := range cells {
		out = append(out, e.trusted(c))
	}
	return out
}
