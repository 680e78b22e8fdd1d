package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"moviebot/internal/models"
)

type movieRow struct {
	movie models.Movie
	seq   int64
}

type joinKey struct {
	userID    int64
	channelID int64
}

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu           sync.RWMutex
	movies       map[string]movieRow
	users        map[int64]models.User
	joinRequests map[joinKey]models.JoinRequestStatus
	seq          int64
	now          func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		movies:       make(map[string]movieRow),
		users:        make(map[int64]models.User),
		joinRequests: make(map[joinKey]models.JoinRequestStatus),
		now:          time.Now,
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// AddMovie inserts a movie unless the code is taken
func (m *MockDB) AddMovie(ctx context.Context, code, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.movies[code]; exists {
		return false, nil
	}

	m.seq++
	m.movies[code] = movieRow{
		movie: models.Movie{
			Code:      code,
			Title:     title,
			CreatedAt: m.now(),
		},
		seq: m.seq,
	}
	return true, nil
}

// GetMovieByCode returns the movie or nil
func (m *MockDB) GetMovieByCode(ctx context.Context, code string) (*models.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.movies[code]
	if !ok {
		return nil, nil
	}
	movie := row.movie
	return &movie, nil
}

// IncrementMovieUsage bumps the usage counter of an existing movie
func (m *MockDB) IncrementMovieUsage(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.movies[code]
	if !ok {
		return false, nil
	}
	row.movie.UsageCount++
	m.movies[code] = row
	return true, nil
}

// ListMovies returns all movies, newest first
func (m *MockDB) ListMovies(ctx context.Context) ([]models.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]movieRow, 0, len(m.movies))
	for _, row := range m.movies {
		rows = append(rows, row)
	}

	// Insertion order breaks ties between equal timestamps
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].movie.CreatedAt.Equal(rows[j].movie.CreatedAt) {
			return rows[i].movie.CreatedAt.After(rows[j].movie.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	movies := make([]models.Movie, len(rows))
	for i, row := range rows {
		movies[i] = row.movie
	}
	return movies, nil
}

// DeleteMovie removes a movie by code
func (m *MockDB) DeleteMovie(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.movies[code]; !ok {
		return false, nil
	}
	delete(m.movies, code)
	return true, nil
}

// UpsertUser creates a user or merges non-nil profile fields
func (m *MockDB) UpsertUser(ctx context.Context, userID int64, username, firstName, lastName *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		user = models.User{
			UserID:   userID,
			JoinedAt: m.now(),
		}
	}
	if username != nil {
		user.Username = copyString(username)
	}
	if firstName != nil {
		user.FirstName = copyString(firstName)
	}
	if lastName != nil {
		user.LastName = copyString(lastName)
	}
	m.users[userID] = user
	return nil
}

// GetUser returns the user or nil
func (m *MockDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// IncrementClickCount increments and returns the click counter
func (m *MockDB) IncrementClickCount(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil
	}
	user.ClickCount++
	m.users[userID] = user
	return user.ClickCount, nil
}

// ResetClickCount sets the click counter to zero
func (m *MockDB) ResetClickCount(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[userID]; ok {
		user.ClickCount = 0
		m.users[userID] = user
	}
	return nil
}

// SetAdminStatus updates the admin flag of an existing user
func (m *MockDB) SetAdminStatus(ctx context.Context, userID int64, isAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[userID]; ok {
		user.IsAdmin = isAdmin
		m.users[userID] = user
	}
	return nil
}

// ListUsers returns all users sorted by id
func (m *MockDB) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].UserID < users[j].UserID
	})
	return users, nil
}

// AddJoinRequest records a join request
func (m *MockDB) AddJoinRequest(ctx context.Context, userID, channelID int64, status models.JoinRequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := joinKey{userID: userID, channelID: channelID}
	if m.joinRequests[key] == models.JoinRequestApproved {
		return nil
	}
	m.joinRequests[key] = status
	return nil
}

// UpdateJoinRequestStatus changes the status of a recorded join request
func (m *MockDB) UpdateJoinRequestStatus(ctx context.Context, userID, channelID int64, status models.JoinRequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := joinKey{userID: userID, channelID: channelID}
	current, ok := m.joinRequests[key]
	if !ok {
		return false, nil
	}
	if current == models.JoinRequestApproved {
		return true, nil
	}
	m.joinRequests[key] = status
	return true, nil
}

// GetJoinRequest returns the recorded join request or nil
func (m *MockDB) GetJoinRequest(ctx context.Context, userID, channelID int64) (*models.JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.joinRequests[joinKey{userID: userID, channelID: channelID}]
	if !ok {
		return nil, nil
	}
	return &models.JoinRequest{UserID: userID, ChannelID: channelID, Status: status}, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func copyString(s *string) *string {
	v := *s
	return &v
}
