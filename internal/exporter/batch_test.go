package exporter_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

func batchItems() []exporter.BatchItem {
	u := sampleUser()
	return []exporter.BatchItem{
		{Kind: exporter.KindProfile, Profile: &u},
		{Kind: exporter.KindCustom, Title: "Notes", Content: "<p>n</p>"},
		{Kind: exporter.KindSchoolRankings, SchoolRankings: []community.SchoolRanking{{School: "Atos", SchoolRank: 1}}},
		{Kind: exporter.KindSchoolLeaderboard, SchoolLeaderboard: &exporter.SchoolLeaderboardData{SchoolName: "Atos", Entries: schoolEntries(2)}},
		{Kind: exporter.KindSchoolPosition, SchoolPosition: &exporter.SchoolPositionData{User: u}},
	}
}

func TestBatch_ProgressAndOrder(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	var progress [][2]int
	result, err := e.Batch(context.Background(), batchItems(), exporter.Options{}, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)

	assert.Equal(t, exporter.BatchResult{Delivered: 5}, result)
	assert.Equal(t, [][2]int{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5}}, progress)
	assert.Equal(t, []string{
		"John_Doe_profile.html",
		"notes.html",
		"bjj_school_rankings.html",
		"atos_school_leaderboard.html",
		"John_Doe_school_performance.html",
	}, m.Names())
}

func TestBatch_SkipsItemsWithoutData(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	items := []exporter.BatchItem{
		{Kind: exporter.KindProfile},
		{Kind: exporter.KindCustom, Title: "Empty"},
		{Kind: exporter.KindSchoolLeaderboard},
		{Kind: exporter.KindSchoolRankings},
		{Kind: exporter.KindSchoolPosition},
		{Kind: "unknown"},
	}

	calls := 0
	result, err := e.Batch(context.Background(), items, exporter.Options{}, func(int, int) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, exporter.BatchResult{Delivered: 1, Skipped: 5}, result)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []string{"empty.html"}, m.Names())
}

func TestBatch_NeverConcurrent(t *testing.T) {
	var inFlight, maxInFlight int32
	s := exporter.SinkFunc(func(context.Context, exporter.File) error {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	e := newTestExporter(t, s)

	_, err := e.Batch(context.Background(), batchItems(), exporter.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), maxInFlight)
}

func TestBatch_DelayBetweenItems(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m, func(c *exporter.Config) { c.BatchDelay = 20 * time.Millisecond })

	items := []exporter.BatchItem{
		{Kind: exporter.KindCustom, Title: "a"},
		{Kind: exporter.KindCustom, Title: "b"},
		{Kind: exporter.KindCustom, Title: "c"},
	}

	start := time.Now()
	_, err := e.Batch(context.Background(), items, exporter.Options{}, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Len(t, m.Files(), 3)
}

func TestBatch_ContinuesAfterDeliveryFailure(t *testing.T) {
	errRejected := errors.New("rejected")
	var delivered []string
	s := exporter.SinkFunc(func(_ context.Context, f exporter.File) error {
		if f.Name == "notes.html" {
			return errRejected
		}
		delivered = append(delivered, f.Name)
		return nil
	})
	e := newTestExporter(t, s)

	result, err := e.Batch(context.Background(), batchItems(), exporter.Options{}, nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "item 2 (custom)")
	assert.Equal(t, exporter.BatchResult{Delivered: 4, Failed: 1}, result)
	assert.Len(t, delivered, 4)
}

func TestBatch_Cancellation(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var progress []int
	result, err := e.Batch(ctx, batchItems(), exporter.Options{}, func(current, _ int) {
		progress = append(progress, current)
		if current == 2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Len(t, m.Files(), 2)
}

func TestBatch_CancelledDuringDelay(t *testing.T) {
	m := sink.NewMemory()
	e := newTestExporter(t, m, func(c *exporter.Config) { c.BatchDelay = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := e.Batch(ctx, batchItems(), exporter.Options{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, result.Delivered)
}

func TestBatchItem_JSON(t *testing.T) {
	raw := `[
		{"type":"profile","profile":{"id":"u1","firstName":"Ana","lastName":"Silva"}},
		{"type":"school-leaderboard","schoolLeaderboard":{"schoolName":"Atos","leaderboard":[{"userId":"u1","points":10,"schoolRank":1,"user":{"id":"u1"}}]}},
		{"type":"school-position","schoolPosition":{"user":{"id":"u1"},"schoolRanks":[{"school":"Atos","schoolRank":1,"totalMembers":3}],"schoolLeaderboard":[]}}
	]`

	var items []exporter.BatchItem
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	require.Len(t, items, 3)

	assert.Equal(t, exporter.KindProfile, items[0].Kind)
	assert.Equal(t, "Silva", items[0].Profile.LastName)
	assert.Equal(t, "Atos", items[1].SchoolLeaderboard.SchoolName)
	assert.Equal(t, 1, items[1].SchoolLeaderboard.Entries[0].SchoolRank)
	assert.Equal(t, 10, items[1].SchoolLeaderboard.Entries[0].Points)
	assert.Equal(t, 3, items[2].SchoolPosition.SchoolRanks[0].TotalMembers)
}
