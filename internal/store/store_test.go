package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/reinodovo/boto-heapsort/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSortingDefaults(t *testing.T) {
	s := NewStore(database.NewInMemoryDatabase())

	sorting, err := s.GetSorting(10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sorting.ChatId)
	assert.Empty(t, sorting.Items)
	assert.NotNil(t, sorting.Users)
	assert.NotNil(t, sorting.CompareResults)
}

func TestSaveAndReset(t *testing.T) {
	db, err := database.NewBoltDatabase(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db)

	sorting := NewSorting(7)
	sorting.Items = []string{"x", "y"}
	sorting.Users[1] = "ana"
	sorting.CompareResults["q1"] = CompareResult{Id: "q1", A: "x", B: "y"}
	sorting.Started = true
	require.NoError(t, s.SaveSorting(7, sorting))

	got, err := s.GetSorting(7)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got.Items)
	assert.Equal(t, "ana", got.Users[1])
	assert.True(t, got.Started)
	require.NotNil(t, got.CompareResults["q1"].Votes, "missing vote maps are restored")

	require.NoError(t, s.ResetSorting(7))
	got, err = s.GetSorting(7)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Empty(t, got.CompareResults)
	assert.False(t, got.Started)
}

func TestFindCompareResult(t *testing.T) {
	sorting := NewSorting(1)
	sorting.CompareResults["q1"] = CompareResult{Id: "q1", A: "x", B: "y"}

	r, reversed, ok := sorting.FindCompareResult("x", "y")
	require.True(t, ok)
	assert.False(t, reversed)
	assert.Equal(t, "q1", r.Id)

	r, reversed, ok = sorting.FindCompareResult("y", "x")
	require.True(t, ok)
	assert.True(t, reversed)
	assert.Equal(t, "q1", r.Id)

	_, _, ok = sorting.FindCompareResult("x", "z")
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	s := NewStore(database.NewInMemoryDatabase())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := s.Update(3, func(sorting *Sorting) error {
				sorting.Users[user] = fmt.Sprintf("user%d", user)
				return nil
			})
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	sorting, err := s.GetSorting(3)
	require.NoError(t, err)
	assert.Len(t, sorting.Users, 50)

	errStop := errors.New("stop")
	_, err = s.Update(3, func(sorting *Sorting) error {
		sorting.Items = []string{"dropped"}
		return errStop
	})
	require.ErrorIs(t, err, errStop)

	sorting, err = s.GetSorting(3)
	require.NoError(t, err)
	assert.Empty(t, sorting.Items)
}
