package timerange

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "timeranges.json"), nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func snapshot(t *testing.T, s *Store) []byte {
	t.Helper()
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return b
}

func TestQ1_ReversedRangeRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.Save(ctx, "Q1", "2024-01-01", "2023-12-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidDateRange))
	assert.Equal(t, 400, apperr.HTTPStatus(err))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "Q1")
	assert.Nil(t, snapshot(t, s))
}

func TestSave_InvalidNeverMutates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, "winter", "2023-12-01", "2024-03-01"))
	before := snapshot(t, s)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := -30; d <= 0; d++ {
		end := start.AddDate(0, 0, d)
		err := s.Save(ctx, fmt.Sprintf("r%d", d), start.Format("2006-01-02"), end.Format("2006-01-02"))
		require.Error(t, err, "end %s", end)
		assert.True(t, errors.Is(err, apperr.ErrInvalidDateRange))
	}
	for _, bad := range [][2]string{{"01/01/2024", "2024-02-01"}, {"2024-01-01", ""}} {
		assert.Error(t, s.Save(ctx, "winter", bad[0], bad[1]))
	}
	assert.Error(t, s.Save(ctx, " ", "2024-01-01", "2024-02-01"))

	assert.Equal(t, before, snapshot(t, s))
	tr, err := s.Get(ctx, "winter")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-01", tr.StartDate)
}

func TestSaveGetListDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Save(ctx, "Q2", "2024-04-01", "2024-06-30"))
	require.NoError(t, s.Save(ctx, "Q1", "2024-01-01", "2024-03-31"))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2"}, names)

	tr, err := s.Get(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Q1", tr.Name)
	assert.Equal(t, "2024-01-01", tr.StartDate)
	assert.Equal(t, "2024-03-31", tr.EndDate)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), tr.Timestamp)

	// overwrite keeps a single entry
	require.NoError(t, s.Save(ctx, "Q1", "2024-01-02", "2024-03-30"))
	tr, err = s.Get(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", tr.StartDate)

	removed, err := s.Delete(ctx, "Q1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, "Q1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Get(ctx, "Q1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, "Q1", "2024-01-01", "2024-03-31"))
	require.NoError(t, s.Clear(ctx))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.JSONEq(t, `{}`, string(snapshot(t, s)))
}

func TestFileFormat(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, "Q1", "2024-01-01", "2024-03-31"))

	assert.JSONEq(t, `{"Q1":{"start_date":"2024-01-01","end_date":"2024-03-31","timestamp":"2024-05-01T09:30:00Z"}}`,
		string(snapshot(t, s)))
}

func TestLoad_RejectsHandEditedFile(t *testing.T) {
	ctx := context.Background()
	for name, doc := range map[string]string{
		"not an object": `["Q1"]`,
		"reversed":      `{"Q1":{"start_date":"2024-02-01","end_date":"2024-01-01"}}`,
		"bad date":      `{"Q1":{"start_date":"Jan 1","end_date":"2024-01-01"}}`,
		"empty name":    `{"":{"start_date":"2024-01-01","end_date":"2024-02-01"}}`,
		"bad timestamp": `{"Q1":{"start_date":"2024-01-01","end_date":"2024-02-01","timestamp":"noon"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o600))

			_, err := s.List(ctx)
			assert.True(t, errors.Is(err, apperr.ErrCorruptStore), "%v", err)
			assert.Error(t, s.Save(ctx, "Q9", "2024-01-01", "2024-02-01"))
			assert.Equal(t, doc, string(snapshot(t, s)))
		})
	}
}

func TestSave_EmptyNameIsInvalidArgument(t *testing.T) {
	for _, name := range []string{"", "   "} {
		err := newStore(t).Save(context.Background(), name, "2024-01-01", "2024-02-01")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument), "%q: %v", name, err)
		assert.False(t, errors.Is(err, apperr.ErrInvalidDateRange))
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
		assert.Equal(t, 400, apperr.HTTPStatus(err))
	}
}

func TestNames_TrimmedByEveryOperation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, " Q1 ", "2024-01-01", "2024-03-31"))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, names)

	tr, err := s.Get(ctx, "Q1  ")
	require.NoError(t, err)
	assert.Equal(t, "Q1", tr.Name)

	removed, err := s.Delete(ctx, "\tQ1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.JSONEq(t, `{}`, string(snapshot(t, s)))
}

func TestLoad_TrimsHandEditedKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(),
		[]byte(`{" Q1":{"start_date":"2024-01-01","end_date":"2024-03-31","timestamp":""}}`), 0o600))

	tr, err := s.Get(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Q1", tr.Name)

	dup := newStore(t)
	require.NoError(t, os.WriteFile(dup.Path(),
		[]byte(`{"Q1":{"start_date":"2024-01-01","end_date":"2024-03-31"},"Q1 ":{"start_date":"2024-01-01","end_date":"2024-03-31"}}`), 0o600))
	_, err = dup.List(ctx)
	assert.True(t, errors.Is(err, apperr.ErrCorruptStore), "%v", err)
}

// Files written by the earlier desktop tool carry timestamps without an
// offset and with microseconds.
func TestLoad_AcceptsTimestampsWithoutOffset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{
	  "Q1": {"start_date": "2024-01-01", "end_date": "2024-03-31", "timestamp": "2024-05-01T12:34:56.789012"},
	  "Q2": {"start_date": "2024-04-01", "end_date": "2024-06-30", "timestamp": "2024-05-02T08:00:00"}
	}`), 0o600))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2"}, names)

	tr, err := s.Get(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 34, 56, 789012000, time.UTC), tr.Timestamp)

	require.NoError(t, s.Save(ctx, "Q3", "2024-07-01", "2024-09-30"))
	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, names)

	tr, err = s.Get(ctx, "Q2")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), tr.Timestamp)
}
