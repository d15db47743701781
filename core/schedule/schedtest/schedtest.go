// Package schedtest holds the behavior every schedule.Repository must share.
package schedtest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// Run exercises a repository created fresh for every subtest by newRepo.
func Run(t *testing.T, newRepo func(t *testing.T) schedule.Repository) {
	t.Run("InsertAssignsIDAndVersion", func(t *testing.T) { testInsert(t, newRepo(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newRepo(t)) })
	t.Run("Versioning", func(t *testing.T) { testVersioning(t, newRepo(t)) })
	t.Run("OpenConflict", func(t *testing.T) { testOpenConflict(t, newRepo(t)) })
	t.Run("FindDueInclusive", func(t *testing.T) { testFindDue(t, newRepo(t)) })
	t.Run("FindByString", func(t *testing.T) { testFindByString(t, newRepo(t)) })
	t.Run("FindByStatus", func(t *testing.T) { testFindByStatus(t, newRepo(t)) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, newRepo(t)) })
}

func testInsert(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	a := model.NewSchedule("str1", 10, t0)
	b := model.NewSchedule("str2", 10, t0)
	require.NoError(t, repo.Save(ctx, &a))
	require.NoError(t, repo.Save(ctx, &b))
	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1), a.Version)
}

func testRoundTrip(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	s := model.NewSchedule("str1", 12.5, t0)
	s.Updated = t0.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, &s))

	s.State = model.StateRunning
	s.UsedCharge = 1234.5
	s.SoH = model.Float(97.25)
	s.SoCBefore = model.Float(80)
	s.SoCAfter = model.Float(78.5)
	require.NoError(t, repo.Save(ctx, &s))
	s.Finish(model.StateSuccess, t0.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, &s))

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "str1", got.StringID)
	assert.Equal(t, 12.5, got.Current)
	assert.Equal(t, 1234.5, got.UsedCharge)
	assert.Equal(t, 97.25, *got.SoH)
	assert.Equal(t, 80.0, *got.SoCBefore)
	assert.Equal(t, 78.5, *got.SoCAfter)
	assert.Equal(t, model.StateSuccess, got.State)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.True(t, got.Start.Equal(t0))
	assert.True(t, got.Updated.Equal(t0.Add(time.Hour)))
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(t0.Add(time.Hour)))
	assert.Equal(t, int64(3), got.Version)

	fresh := model.NewSchedule("str9", 1, t0)
	require.NoError(t, repo.Save(ctx, &fresh))
	got, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SoH)
	assert.Nil(t, got.SoCBefore)
	assert.Nil(t, got.End)
}

func testVersioning(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	s := model.NewSchedule("str1", 10, t0)
	require.NoError(t, repo.Save(ctx, &s))

	a, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)

	a.State = model.StateRunning
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Start = t0.Add(time.Hour)
	err = repo.Save(ctx, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrStale))

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRunning, got.State)
	assert.True(t, got.Start.Equal(t0))
}

func testOpenConflict(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	a := model.NewSchedule("str1", 10, t0)
	require.NoError(t, repo.Save(ctx, &a))

	b := model.NewSchedule("str1", 20, t0)
	err := repo.Save(ctx, &b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrConflict))

	a.Status = model.StatusInactive
	require.NoError(t, repo.Save(ctx, &a))
	b = model.NewSchedule("str1", 20, t0)
	require.NoError(t, repo.Save(ctx, &b))

	b.Finish(model.StateFailed, t0)
	require.NoError(t, repo.Save(ctx, &b))
	c := model.NewSchedule("str1", 30, t0)
	assert.NoError(t, repo.Save(ctx, &c))
}

func testFindDue(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	due := model.NewSchedule("a", 1, t0)
	past := model.NewSchedule("b", 1, t0.Add(-time.Hour))
	later := model.NewSchedule("c", 1, t0.Add(time.Second))
	removed := model.NewSchedule("d", 1, t0)
	removed.Status = model.StatusInactive
	for _, s := range []*model.Schedule{&due, &past, &later, &removed} {
		require.NoError(t, repo.Save(ctx, s))
	}

	res, err := repo.FindDue(ctx, t0, model.StatePending, model.StatusActive)
	require.NoError(t, err)
	ids := map[int64]bool{}
	for _, s := range res {
		ids[s.ID] = true
	}
	assert.Len(t, res, 2)
	assert.True(t, ids[due.ID], "start equal to now is due")
	assert.True(t, ids[past.ID])
}

func testFindByString(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	s := model.NewSchedule("str1", 10, t0)
	require.NoError(t, repo.Save(ctx, &s))
	s.State = model.StateRunning
	require.NoError(t, repo.Save(ctx, &s))

	got, err := repo.FindByString(ctx, "str1", schedule.OpenStates, model.StatusActive)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)

	got, err = repo.FindByString(ctx, "str1", []model.State{model.StatePending}, model.StatusActive)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.FindByString(ctx, "other", schedule.OpenStates, model.StatusActive)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testFindByStatus(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	a := model.NewSchedule("a", 1, t0)
	b := model.NewSchedule("b", 1, t0)
	require.NoError(t, repo.Save(ctx, &a))
	require.NoError(t, repo.Save(ctx, &b))
	b.Status = model.StatusInactive
	require.NoError(t, repo.Save(ctx, &b))

	active, err := repo.FindByStatus(ctx, model.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	inactive, err := repo.FindByStatus(ctx, model.StatusInactive)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, b.ID, inactive[0].ID)
}

func testMissing(t *testing.T, repo schedule.Repository) {
	ctx := context.Background()
	got, err := repo.FindByID(ctx, 424242)
	assert.NoError(t, err)
	assert.Nil(t, got)

	ghost := model.NewSchedule("x", 1, t0)
	ghost.ID = 424242
	ghost.Version = 1
	err = repo.Save(ctx, &ghost)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrPersistence))
	assert.False(t, errors.Is(err, schedule.ErrStale))
}
