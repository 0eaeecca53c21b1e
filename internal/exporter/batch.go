package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bjjsocial/bjjsocial/internal/community"
)

// SchoolLeaderboardData is the payload of a school-leaderboard batch item.
type SchoolLeaderboardData struct {
	SchoolName string                             `json:"schoolName" yaml:"schoolName"`
	Entries    []community.SchoolLeaderboardEntry `json:"leaderboard" yaml:"leaderboard"`
}

// SchoolPositionData is the payload of a school-position batch item.
type SchoolPositionData struct {
	User        community.User                     `json:"user" yaml:"user"`
	SchoolRanks []community.SchoolRank             `json:"schoolRanks" yaml:"schoolRanks"`
	Leaderboard []community.SchoolLeaderboardEntry `json:"schoolLeaderboard" yaml:"schoolLeaderboard"`
}

// BatchItem is one export request in a batch. Only the payload matching Kind
// is read; items of other kinds without their payload are skipped.
type BatchItem struct {
	Kind  Kind   `json:"type" yaml:"type"`
	Title string `json:"title,omitempty" yaml:"title"`

	Profile           *community.User           `json:"profile,omitempty" yaml:"profile"`
	Content           string                    `json:"content,omitempty" yaml:"content"`
	SchoolLeaderboard *SchoolLeaderboardData    `json:"schoolLeaderboard,omitempty" yaml:"schoolLeaderboard"`
	SchoolRankings    []community.SchoolRanking `json:"schoolRankings,omitempty" yaml:"schoolRankings"`
	SchoolPosition    *SchoolPositionData       `json:"schoolPosition,omitempty" yaml:"schoolPosition"`
}

// BatchResult counts the outcome of a batch.
type BatchResult struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ProgressFunc is called after each batch item with (current, total).
type ProgressFunc func(current, total int)

var errSkipped = errors.New("skipped")

// Batch exports items strictly in order, one at a time, waiting BatchDelay
// between items. onProgress (optional) is called after every item, including
// skipped and failed ones. Delivery errors do not stop the batch and are
// returned joined; cancellation of ctx stops it between items.
func (e *Exporter) Batch(ctx context.Context, items []BatchItem, opts Options, onProgress ProgressFunc) (BatchResult, error) {
	var (
		result BatchResult
		errs   []error
	)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(append(errs, err)...)
		}

		switch err := e.exportItem(ctx, item, opts); {
		case errors.Is(err, errSkipped):
			result.Skipped++
			e.logger.Debug().Int("index", i).Str("kind", string(item.Kind)).Msg("batch item skipped")
		case err != nil:
			result.Failed++
			errs = append(errs, fmt.Errorf("item %d (%s): %w", i+1, item.Kind, err))
		default:
			result.Delivered++
		}

		if onProgress != nil {
			onProgress(i+1, len(items))
		}

		if i < len(items)-1 && e.batchDelay > 0 {
			if err := sleep(ctx, e.batchDelay); err != nil {
				return result, errors.Join(append(errs, err)...)
			}
		}
	}

	return result, errors.Join(errs...)
}

func (e *Exporter) exportItem(ctx context.Context, item BatchItem, opts Options) error {
	switch item.Kind {
	case KindProfile:
		if item.Profile == nil {
			return errSkipped
		}
		return e.ExportUserProfile(ctx, *item.Profile, opts)
	case KindCustom:
		return e.ExportCustomContent(ctx, item.Title, item.Content, opts)
	case KindSchoolLeaderboard:
		if item.SchoolLeaderboard == nil {
			return errSkipped
		}
		return e.ExportSchoolLeaderboard(ctx, item.SchoolLeaderboard.SchoolName, item.SchoolLeaderboard.Entries, opts)
	case KindSchoolRankings:
		if item.SchoolRankings == nil {
			return errSkipped
		}
		return e.ExportSchoolRankings(ctx, item.SchoolRankings, opts)
	case KindSchoolPosition:
		if item.SchoolPosition == nil {
			return errSkipped
		}
		p := item.SchoolPosition
		return e.ExportUserSchoolPosition(ctx, p.User, p.SchoolRanks, p.Leaderboard, opts)
	default:
		return errSkipped
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
