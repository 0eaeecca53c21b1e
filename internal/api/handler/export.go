// Package handler provides HTTP handlers for the BJJ Social export API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
	"github.com/bjjsocial/bjjsocial/internal/api/models"
	"github.com/bjjsocial/bjjsocial/internal/api/response"
	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exportcache"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/provider/resilience"
	"github.com/bjjsocial/bjjsocial/internal/sink"
	"github.com/bjjsocial/bjjsocial/internal/worker"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// JobPublisher enqueues export jobs.
type JobPublisher interface {
	Publish(ctx context.Context, job worker.Job) (string, error)
}

// ExportHandlerConfig configures an ExportHandler.
type ExportHandlerConfig struct {
	// Exporter renders documents. Its sink is replaced per request.
	Exporter *exporter.Exporter

	Source community.Source

	// Cache stores GET documents. Optional.
	Cache    exportcache.Cache
	CacheTTL time.Duration

	// Storage receives synchronous batch exports. Optional.
	Storage exporter.Sink

	// Publisher, when set, makes batch exports asynchronous.
	Publisher JobPublisher

	// Sanitizer filters HTML supplied in request bodies. Default: bluemonday UGC policy.
	Sanitizer *bluemonday.Policy

	Logger zerolog.Logger
}

// ExportHandler serves exported documents.
type ExportHandler struct {
	exporter  *exporter.Exporter
	untrusted *exporter.Exporter
	source    community.Source
	cache     exportcache.Cache
	cacheTTL  time.Duration
	storage   exporter.Sink
	publisher JobPublisher
	logger    zerolog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(cfg ExportHandlerConfig) *ExportHandler {
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = bluemonday.UGCPolicy()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = exportcache.DefaultTTL
	}

	return &ExportHandler{
		exporter:  cfg.Exporter,
		untrusted: cfg.Exporter.WithSanitizer(cfg.Sanitizer),
		source:    cfg.Source,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		storage:   cfg.Storage,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With().Str("component", "export-handler").Logger(),
	}
}

// renderFunc renders one document with e.
type renderFunc func(ctx context.Context, e *exporter.Exporter) error

// UserProfile handles GET /v1/exports/users/{userId}.
func (h *ExportHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	opts, fieldErrors := parseOptions(r.URL.Query())
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	h.serveCached(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		u, err := h.source.GetUser(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			return sourceError{err}
		}
		return e.ExportUserProfile(ctx, *u, opts)
	})
}

// UserSchoolPosition handles GET /v1/exports/users/{userId}/school-position.
func (h *ExportHandler) UserSchoolPosition(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts, fieldErrors := parseOptions(query)
	filter, filterErrors := parseLeaderboardFilter(query)
	if fieldErrors = append(fieldErrors, filterErrors...); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	h.serveCached(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		userID := chi.URLParam(r, "userId")

		u, err := h.source.GetUser(ctx, userID)
		if err != nil {
			return sourceError{err}
		}

		ranks, err := h.source.UserSchoolRanks(ctx, userID, filter)
		if err != nil {
			return sourceError{err}
		}

		var leaderboard []community.SchoolLeaderboardEntry
		if u.School != "" {
			if leaderboard, err = h.source.SchoolLeaderboard(ctx, u.School, filter); err != nil {
				return sourceError{err}
			}
		}

		return e.ExportUserSchoolPosition(ctx, *u, ranks, leaderboard, opts)
	})
}

// Community handles GET /v1/exports/community.
func (h *ExportHandler) Community(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts, fieldErrors := parseOptions(query)
	limit, limitErrors := parseLimit(query)
	if fieldErrors = append(fieldErrors, limitErrors...); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	filter := community.UserFilter{
		School: query.Get("school"),
		Query:  query.Get("q"),
		Limit:  limit,
	}

	h.serveCached(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		users, err := h.source.ListUsers(ctx, filter)
		if err != nil {
			return sourceError{err}
		}
		return e.ExportCommunityProfiles(ctx, users, opts)
	})
}

// SchoolRankings handles GET /v1/exports/schools/rankings.
func (h *ExportHandler) SchoolRankings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts, fieldErrors := parseOptions(query)
	filter, filterErrors := parseLeaderboardFilter(query)
	if fieldErrors = append(fieldErrors, filterErrors...); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	h.serveCached(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		rankings, err := h.source.SchoolRankings(ctx, filter)
		if err != nil {
			return sourceError{err}
		}
		return e.ExportSchoolRankings(ctx, rankings, opts)
	})
}

// SchoolLeaderboard handles GET /v1/exports/schools/{school}/leaderboard.
func (h *ExportHandler) SchoolLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts, fieldErrors := parseOptions(query)
	filter, filterErrors := parseLeaderboardFilter(query)
	if fieldErrors = append(fieldErrors, filterErrors...); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	school := chi.URLParam(r, "school")
	if strings.TrimSpace(school) == "" {
		response.BadRequest(w, r, "invalid path", []models.FieldError{{Field: "school", Message: "is required", Code: "REQUIRED"}})
		return
	}

	h.serveCached(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		entries, err := h.source.SchoolLeaderboard(ctx, school, filter)
		if err != nil {
			return sourceError{err}
		}
		return e.ExportSchoolLeaderboard(ctx, school, entries, opts)
	})
}

// Table handles POST /v1/exports/table.
func (h *ExportHandler) Table(w http.ResponseWriter, r *http.Request) {
	var req models.TableExportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.stream(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		data := exporter.TableData{Headers: req.Headers, Rows: req.Rows}
		return e.ExportDataTable(ctx, data, req.Title, req.Options.ToExporter())
	})
}

// Custom handles POST /v1/exports/custom.
func (h *ExportHandler) Custom(w http.ResponseWriter, r *http.Request) {
	var req models.CustomExportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.stream(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		return e.ExportCustomContent(ctx, req.Title, req.Content, req.Options.ToExporter())
	})
}

// Element handles POST /v1/exports/element.
func (h *ExportHandler) Element(w http.ResponseWriter, r *http.Request) {
	var req models.ElementExportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.stream(w, r, func(ctx context.Context, e *exporter.Exporter) error {
		return e.ExportElement(ctx, strings.NewReader(req.Page), req.ElementID, req.Title, req.Options.ToExporter())
	})
}

// Batch handles POST /v1/exports/batch. With a publisher the job is queued
// (202); otherwise it runs into storage and reports each file (200).
func (h *ExportHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchExportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	opts := req.Options.ToExporter()

	if h.publisher != nil {
		jobID, err := h.publisher.Publish(r.Context(), worker.NewBatchJob("", req.Items, opts))
		if err != nil {
			h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("failed to enqueue batch job")
			response.ServiceUnavailable(w, r, "batch queue unavailable")
			return
		}
		response.Accepted(w, r, "", models.BatchJobAccepted{JobID: jobID, Items: len(req.Items)})
		return
	}

	if h.storage == nil {
		response.ServiceUnavailable(w, r, "batch export storage is not configured")
		return
	}

	rec := &recordingSink{next: h.storage}
	result, err := h.untrusted.WithSink(rec).Batch(r.Context(), req.Items, opts, nil)

	resp := models.BatchExportResponse{
		Delivered: result.Delivered,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Files:     rec.files,
		Errors:    errorMessages(err),
	}
	if resp.Files == nil {
		resp.Files = []models.ExportedFile{}
	}

	status := http.StatusOK
	if result.Delivered == 0 && result.Failed > 0 {
		status = http.StatusBadGateway
	}
	response.JSON(w, r, status, resp)
}

// cacheParams are the query parameters GET exports read; nothing else can
// change the rendered document.
var cacheParams = []string{
	"theme", "includeStyles", "title",
	"season", "ruleset", "isGi", "belt", "weightClass", "ageDivision", "gender", "limit",
	"school", "q",
}

// serveCached renders a GET document, serving and filling the cache.
func (h *ExportHandler) serveCached(w http.ResponseWriter, r *http.Request, render renderFunc) {
	ctx := r.Context()
	key := exportcache.Key(r.URL.Path, r.URL.Query(), cacheParams)
	cacheStatus := ""

	if h.cache != nil {
		cacheStatus = response.CacheMiss
		f, ok, err := h.cache.Get(ctx, key)
		switch {
		case err != nil:
			h.logger.Warn().Err(err).Str("key", key).Msg("export cache lookup failed")
		case ok:
			response.Attachment(w, r, f, response.CacheHit)
			return
		}
	}

	capture := sink.NewMemory()
	if err := render(ctx, h.exporter.WithSink(capture)); err != nil {
		h.writeError(w, r, err)
		return
	}

	files := capture.Files()
	if len(files) == 0 {
		response.NotFound(w, r, "nothing to export")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, files[0], h.cacheTTL); err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("export cache store failed")
		}
	}

	response.Attachment(w, r, files[0], cacheStatus)
}

// stream renders a POST document straight into the response.
func (h *ExportHandler) stream(w http.ResponseWriter, r *http.Request, render renderFunc) {
	out := sink.NewHTTP(w)
	out.SetHeader("Content-Security-Policy", response.DocumentCSP)
	out.SetHeader("Cache-Control", "no-store")
	out.SetHeader("X-Request-Id", middleware.GetRequestID(r.Context()))

	err := render(r.Context(), h.untrusted.WithSink(out))
	if out.Written() != "" {
		if err != nil {
			h.logger.Warn().Err(err).Msg("document response incomplete")
		}
		return
	}

	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NotFound(w, r, "element not found in page")
}

// sourceError marks a failure of the community source.
type sourceError struct {
	err error
}

func (e sourceError) Error() string { return e.err.Error() }
func (e sourceError) Unwrap() error { return e.err }

// writeError maps an export failure to a problem response.
func (h *ExportHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var srcErr sourceError

	switch {
	case errors.Is(err, community.ErrUserNotFound):
		response.NotFound(w, r, "user not found")
		return
	case errors.Is(err, community.ErrSchoolNotFound):
		response.NotFound(w, r, "school not found")
		return
	case errors.Is(err, community.ErrNotFound):
		response.NotFound(w, r, "requested data not found")
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, "community data source is unavailable")
	case errors.As(err, &srcErr):
		response.BadGateway(w, r, "community data source request failed")
	default:
		response.InternalError(w, r, "export failed")
	}

	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("export failed")
}

// decodeAndValidate decodes a JSON body into dst and validates it, writing
// a 400 problem on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.BadRequest(w, r, "request body too large", nil)
			return false
		}
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}

	if fieldErrors := models.Validate(dst); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return false
	}
	return true
}

// parseOptions reads theme, includeStyles and title from the query.
func parseOptions(q url.Values) (exporter.Options, []models.FieldError) {
	var (
		opts        exporter.Options
		fieldErrors []models.FieldError
	)

	if theme := q.Get("theme"); theme != "" {
		if theme != string(exporter.ThemeLight) && theme != string(exporter.ThemeDark) {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "theme", Message: "must be one of: light dark", Code: "INVALID_VALUE"})
		}
		opts.Theme = exporter.Theme(theme)
	}

	if raw := q.Get("includeStyles"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "includeStyles", Message: "must be a boolean", Code: "INVALID"})
		}
		opts.IncludeStyles = exporter.Bool(include)
	}

	opts.Title = q.Get("title")
	return opts.Normalize(), fieldErrors
}

// parseLeaderboardFilter reads division filters from the query.
func parseLeaderboardFilter(q url.Values) (community.LeaderboardFilter, []models.FieldError) {
	limit, fieldErrors := parseLimit(q)

	filter := community.LeaderboardFilter{
		Season:      q.Get("season"),
		Ruleset:     q.Get("ruleset"),
		Belt:        q.Get("belt"),
		WeightClass: q.Get("weightClass"),
		AgeDivision: q.Get("ageDivision"),
		Gender:      q.Get("gender"),
		Limit:       limit,
	}

	if raw := q.Get("isGi"); raw != "" {
		isGi, err := strconv.ParseBool(raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "isGi", Message: "must be a boolean", Code: "INVALID"})
		} else {
			filter.IsGi = &isGi
		}
	}

	return filter, fieldErrors
}

func parseLimit(q url.Values) (int, []models.FieldError) {
	raw := q.Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > community.MaxLimit {
		return 0, []models.FieldError{{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(community.MaxLimit), Code: "INVALID_VALUE"}}
	}
	return limit, nil
}

// recordingSink forwards to next and records delivered files in order,
// with the location next reports for each.
type recordingSink struct {
	next exporter.Sink

	mu    sync.Mutex
	files []models.ExportedFile
}

func (s *recordingSink) Deliver(ctx context.Context, f exporter.File) error {
	file := models.ExportedFile{Name: f.Name}
	if l, ok := s.next.(sink.Locator); ok {
		location, err := l.Put(ctx, f)
		if err != nil {
			return err
		}
		file.Location = location
	} else if err := s.next.Deliver(ctx, f); err != nil {
		return err
	}

	s.mu.Lock()
	s.files = append(s.files, file)
	s.mu.Unlock()
	return nil
}

func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
