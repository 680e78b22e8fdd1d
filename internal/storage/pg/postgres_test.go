package pg

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"

	"moviebot/internal/models"
)

// setupTestDB starts a Postgres container and applies the migrations
func setupTestDB(t *testing.T) (*PostgresDB, func()) {
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("moviebot"),
		postgresTC.WithUsername("postgres"),
		postgresTC.WithPassword("postgres"),
		postgresTC.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start Postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewPostgresDB(ctx, dsn, 10)
	require.NoError(t, err, "Failed to connect to Postgres")

	require.NoError(t, db.Initialize(ctx), "Failed to run migrations")

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}
	return db, cleanup
}

func strPtr(s string) *string { return &s }

func TestPostgresDB_Movies(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := db.AddMovie(ctx, "X1", "My Movie")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AddMovie(ctx, "X1", "Other Movie")
	require.NoError(t, err)
	assert.False(t, ok, "duplicate code must be rejected")

	movie, err := db.GetMovieByCode(ctx, "X1")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "My Movie", movie.Title)
	assert.EqualValues(t, 0, movie.UsageCount)
	assert.False(t, movie.CreatedAt.IsZero())

	missing, err := db.GetMovieByCode(ctx, "x1")
	require.NoError(t, err)
	assert.Nil(t, missing, "codes are case-sensitive")

	_, err = db.AddMovie(ctx, "X2", "Second")
	require.NoError(t, err)

	movies, err := db.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "X2", movies[0].Code)
	assert.Equal(t, "X1", movies[1].Code)

	deleted, err := db.DeleteMovie(ctx, "X2")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteMovie(ctx, "X2")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPostgresDB_IncrementMovieUsage(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.AddMovie(ctx, "X1", "My Movie")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.IncrementMovieUsage(ctx, "X1")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	movie, err := db.GetMovieByCode(ctx, "X1")
	require.NoError(t, err)
	assert.EqualValues(t, 20, movie.UsageCount)

	ok, err := db.IncrementMovieUsage(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresDB_Users(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	count, err := db.IncrementClickCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	user, err := db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, user, "increment must not insert users")

	require.NoError(t, db.UpsertUser(ctx, 1, strPtr("alice"), strPtr("A"), strPtr("L")))
	require.NoError(t, db.UpsertUser(ctx, 1, nil, nil, strPtr("L2")))

	user, err = db.GetUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", *user.Username)
	assert.Equal(t, "A", *user.FirstName)
	assert.Equal(t, "L2", *user.LastName)
	assert.False(t, user.IsAdmin)

	for want := 1; want <= 3; want++ {
		count, err := db.IncrementClickCount(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	require.NoError(t, db.ResetClickCount(ctx, 1))
	require.NoError(t, db.SetAdminStatus(ctx, 1, true))

	user, err = db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, user.ClickCount)
	assert.True(t, user.IsAdmin)

	require.NoError(t, db.UpsertUser(ctx, 2, nil, nil, nil))
	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Nil(t, users[1].Username)
}

func TestPostgresDB_JoinRequests(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := db.UpdateJoinRequestStatus(ctx, 1, -100, models.JoinRequestApproved)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddJoinRequest(ctx, 1, -100, models.JoinRequestPending))
	req, err := db.GetJoinRequest(ctx, 1, -100)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.JoinRequestPending, req.Status)

	ok, err = db.UpdateJoinRequestStatus(ctx, 1, -100, models.JoinRequestApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.AddJoinRequest(ctx, 1, -100, models.JoinRequestPending))
	_, err = db.UpdateJoinRequestStatus(ctx, 1, -100, models.JoinRequestPending)
	require.NoError(t, err)

	req, err = db.GetJoinRequest(ctx, 1, -100)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestApproved, req.Status)
}
