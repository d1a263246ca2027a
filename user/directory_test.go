package user

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/agentuity/go-common/logger"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func newTestDirectory() *Directory {
	return NewDirectory(NewMemoryStore(), logger.NewTestLogger())
}

func TestCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	created, err := dir.Create(ctx, &User{Username: str("a")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	got, err := dir.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", *got.Username)
}

func TestCreateIgnoresCallerID(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	created, err := dir.Create(ctx, &User{ID: 999, Username: str("a")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
}

func TestCreateDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Create(ctx, &User{Username: str("john_doe"), Email: str("john@example.com")})
	require.NoError(t, err)

	_, err = dir.Create(ctx, &User{Username: str("john_doe"), Email: str("x@y.com")})
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "username already exists")

	// The failed create left the directory unchanged.
	records, err := dir.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Create(ctx, &User{Username: str("a"), Email: str("same@example.com")})
	require.NoError(t, err)

	_, err = dir.Create(ctx, &User{Username: str("b"), Email: str("same@example.com")})
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "email already exists")
}

func TestCreateWithoutNaturalKeys(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	// Records without username or email never conflict with each other.
	_, err := dir.Create(ctx, &User{FirstName: str("anon")})
	require.NoError(t, err)
	_, err = dir.Create(ctx, &User{FirstName: str("also anon")})
	require.NoError(t, err)
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateGetDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	created, err := dir.Create(ctx, &User{Username: str("a")})
	require.NoError(t, err)

	got, err := dir.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", *got.Username)

	require.NoError(t, dir.Delete(ctx, created.ID))
	_, err = dir.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaveAfterDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	saved, err := store.Save(ctx, &User{Username: str("a")})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, saved.ID))

	// Saving a deleted id must not resurrect the record.
	got, err := store.Save(ctx, saved)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)

	missing, err := store.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	err := dir.Delete(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergePatch(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	created, err := dir.Create(ctx, &User{
		Username:  str("john_doe"),
		Email:     str("john@example.com"),
		FirstName: str("John"),
		LastName:  str("Doe"),
		Active:    boolPtr(true),
	})
	require.NoError(t, err)

	updated, err := dir.Update(ctx, created.ID, &User{FirstName: str("Johnny")})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", *updated.FirstName)
	assert.Equal(t, "john_doe", *updated.Username)
	assert.Equal(t, "john@example.com", *updated.Email)
	assert.Equal(t, "Doe", *updated.LastName)
	assert.True(t, *updated.Active)

	// The merge is persisted, not just returned.
	got, err := dir.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", *got.FirstName)
	assert.Equal(t, "john_doe", *got.Username)
}

func TestUpdateNotFound(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Update(ctx, 1, &User{FirstName: str("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUsernameConflict(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Create(ctx, &User{Username: str("taken")})
	require.NoError(t, err)
	second, err := dir.Create(ctx, &User{Username: str("free")})
	require.NoError(t, err)

	_, err = dir.Update(ctx, second.ID, &User{Username: str("taken")})
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "username already exists")

	// Unchanged on conflict.
	got, err := dir.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "free", *got.Username)
}

func TestUpdateEmailConflict(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Create(ctx, &User{Username: str("a"), Email: str("taken@example.com")})
	require.NoError(t, err)
	second, err := dir.Create(ctx, &User{Username: str("b"), Email: str("free@example.com")})
	require.NoError(t, err)

	_, err = dir.Update(ctx, second.ID, &User{Email: str("taken@example.com")})
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "email already exists")
}

func TestUpdateSameUsernameIsNoConflict(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	created, err := dir.Create(ctx, &User{Username: str("same")})
	require.NoError(t, err)

	// Re-sending the current username skips the uniqueness check entirely.
	updated, err := dir.Update(ctx, created.ID, &User{Username: str("same"), FirstName: str("x")})
	require.NoError(t, err)
	assert.Equal(t, "same", *updated.Username)
	assert.Equal(t, "x", *updated.FirstName)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := dir.Create(ctx, &User{Username: str(name)})
		require.NoError(t, err)
	}

	first, err := dir.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", *first[0].Username)
	assert.Equal(t, "b", *first[1].Username)

	last, err := dir.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "e", *last[0].Username)

	empty, err := dir.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListDefaultsPageSize(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Create(ctx, &User{Username: str("a")})
	require.NoError(t, err)

	records, err := dir.List(ctx, -1, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestConcurrentCreateRace pins down the check-then-act design: concurrent
// creates of the same username can all pass the pre-check, and it is the
// store's constraint that serializes them to exactly one winner.
func TestConcurrentCreateRace(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	const writers = 8
	var wins, conflicts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dir.Create(ctx, &User{Username: str("contested")})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, int64(writers-1), conflicts.Load())
}
