package history

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspulse/pulsefeed/internal/model"
)

func testRecord(n int, room, event string, at time.Time) *model.EventRecord {
	payload, _ := json.Marshal(map[string]int{"n": n})
	return &model.EventRecord{
		ID:         fmt.Sprintf("rec-%d", n),
		Room:       room,
		Event:      event,
		Payload:    payload,
		ReceivedAt: at,
	}
}

// TestRepositoryInsertAndList tests the basic persist/read cycle, including
// newest-first ordering.
func TestRepositoryInsertAndList(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, testRecord(i, "alerts", "alerts:raised", base.Add(time.Duration(i)*time.Second))))
	}

	records, err := repo.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, "rec-2", records[0].ID)
	assert.Equal(t, "rec-1", records[1].ID)
	assert.Equal(t, "rec-0", records[2].ID)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(records[0].Payload, &payload))
	assert.Equal(t, 2, payload["n"])
}

// TestRepositoryListFilters tests room and event filtering plus the limit.
func TestRepositoryListFilters(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, testRecord(0, "alerts", "alerts:raised", base)))
	require.NoError(t, repo.Insert(ctx, testRecord(1, "alerts", "alerts:cleared", base.Add(time.Second))))
	require.NoError(t, repo.Insert(ctx, testRecord(2, "metrics", "metrics:update", base.Add(2*time.Second))))

	records, err := repo.List(ctx, Query{Room: "alerts"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = repo.List(ctx, Query{Room: "alerts", Event: "alerts:raised"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-0", records[0].ID)

	records, err = repo.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-2", records[0].ID)

	records, err = repo.List(ctx, Query{Room: "nope"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestRepositoryNullPayload tests that events without a payload survive the
// round trip as empty.
func TestRepositoryNullPayload(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	rec := &model.EventRecord{
		ID:         "bare",
		Room:       "alerts",
		Event:      "alerts:cleared",
		ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, rec))

	records, err := repo.List(ctx, Query{Room: "alerts"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Payload)
}

// TestRepositoryCountByRoom tests the per-room counter.
func TestRepositoryCountByRoom(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Insert(ctx, testRecord(i, "jobs", "jobs:progress", base.Add(time.Duration(i)*time.Millisecond))))
	}

	count, err := repo.CountByRoom(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = repo.CountByRoom(ctx, "alerts")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestRepositoryPrune tests that pruning removes exactly the records older
// than the cutoff.
func TestRepositoryPrune(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, testRecord(i, "alerts", "alerts:raised", base.Add(time.Duration(i)*time.Minute))))
	}

	removed, err := repo.Prune(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err := repo.CountByRoom(ctx, "alerts")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// TestRepositoryRoundTripProperty tests that any stored record comes back
// with its fields intact when listed by room.
func TestRepositoryRoundTripProperty(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	seq := 0
	properties.Property("records survive the store round trip", prop.ForAll(
		func(event, message string) bool {
			if event == "" {
				event = "tick"
			}
			seq++
			room := fmt.Sprintf("room-%d", seq)
			payload, _ := json.Marshal(map[string]string{"message": message})

			rec := &model.EventRecord{
				ID:         fmt.Sprintf("prop-%d", seq),
				Room:       room,
				Event:      event,
				Payload:    payload,
				ReceivedAt: time.Now().UTC(),
			}
			if err := repo.Insert(ctx, rec); err != nil {
				return false
			}

			records, err := repo.List(ctx, Query{Room: room})
			if err != nil || len(records) != 1 {
				return false
			}
			got := records[0]
			if got.ID != rec.ID || got.Room != room || got.Event != event {
				return false
			}

			var parsed map[string]string
			if err := json.Unmarshal(got.Payload, &parsed); err != nil {
				return false
			}
			return parsed["message"] == message
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
