// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

// Run exercises open against the store contract. open must return an empty
// store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("bundles", func(t *testing.T) { testBundles(t, open(t)) })
	t.Run("latest bundle", func(t *testing.T) { testLatestBundle(t, open(t)) })
	t.Run("runs", func(t *testing.T) { testRuns(t, open(t)) })
	t.Run("run filter", func(t *testing.T) { testRunFilter(t, open(t)) })
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testBundles(t *testing.T, st store.Store) {
	ctx := context.Background()

	// GIVEN: an empty store
	_, err := st.GetBundle(ctx, "2025.1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// WHEN: a bundle is saved
	rec := store.BundleRecord{Version: "2025.1", EffectiveYear: 2025, ConfigJSON: []byte(`{"version":"2025.1"}`), CreatedAt: base}
	require.NoError(t, st.SaveBundle(ctx, rec))

	// THEN: it can be read back and cannot be overwritten
	got, err := st.GetBundle(ctx, "2025.1")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.EffectiveYear)
	assert.JSONEq(t, `{"version":"2025.1"}`, string(got.ConfigJSON))
	assert.True(t, base.Equal(got.CreatedAt))

	err = st.SaveBundle(ctx, rec)
	assert.ErrorIs(t, err, store.ErrDuplicateVersion)
}

func testLatestBundle(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.LatestBundle(ctx, 0)
	require.ErrorIs(t, err, store.ErrNotFound)

	for i, v := range []struct {
		version string
		year    int
	}{{"2024.1", 2024}, {"2025.1", 2025}, {"2025.2", 2025}, {"2024.2", 2024}} {
		require.NoError(t, st.SaveBundle(ctx, store.BundleRecord{
			Version:       v.version,
			EffectiveYear: v.year,
			ConfigJSON:    []byte(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := st.LatestBundle(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2025.2", got.Version)

	got, err = st.LatestBundle(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024.2", got.Version, "a correction to an older year is still the latest save")

	_, err = st.LatestBundle(ctx, 2023)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := st.ListBundles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "2024.2", list[0].Version)
	assert.Equal(t, "2024.1", list[3].Version)
}

func testRuns(t *testing.T, st store.Store) {
	ctx := context.Background()

	rec := store.RunRecord{
		ID:            "run-1",
		BundleVersion: "2025.1",
		Grade:         "E-5",
		Period:        "2025-03",
		Green:         9,
		Yellow:        1,
		Red:           0,
		NetDelta:      -300,
		RequestJSON:   []byte(`{"lines":[]}`),
		ResultJSON:    []byte(`{"flags":[]}`),
		CreatedAt:     base,
	}
	require.NoError(t, st.SaveRun(ctx, rec))
	assert.ErrorIs(t, st.SaveRun(ctx, rec), store.ErrDuplicateRun)

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Grade, got.Grade)
	assert.Equal(t, rec.Period, got.Period)
	assert.Equal(t, 9, got.Green)
	assert.Equal(t, int64(-300), got.NetDelta)
	assert.JSONEq(t, string(rec.ResultJSON), string(got.ResultJSON))

	_, err = st.GetRun(ctx, "run-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRunFilter(t *testing.T, st store.Store) {
	ctx := context.Background()

	// GIVEN: five runs across two periods, the odd ones with red flags
	for i := 0; i < 5; i++ {
		period := "2025-03"
		if i >= 3 {
			period = "2025-04"
		}
		require.NoError(t, st.SaveRun(ctx, store.RunRecord{
			ID:            fmt.Sprintf("run-%d", i),
			BundleVersion: "2025.1",
			Grade:         "E-5",
			Period:        period,
			Red:           i % 2,
			RequestJSON:   []byte(`{}`),
			ResultJSON:    []byte(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}

	// WHEN/THEN: listing is newest first and honours every filter field
	all, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "run-4", all[0].ID)
	assert.Equal(t, "run-0", all[4].ID)

	march, err := st.ListRuns(ctx, store.RunFilter{Period: "2025-03"})
	require.NoError(t, err)
	assert.Len(t, march, 3)

	red, err := st.ListRuns(ctx, store.RunFilter{OnlyRed: true})
	require.NoError(t, err)
	require.Len(t, red, 2)
	assert.Equal(t, "run-3", red[0].ID)

	limited, err := st.ListRuns(ctx, store.RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := st.ListRuns(ctx, store.RunFilter{BundleVersion: "2024.1"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
