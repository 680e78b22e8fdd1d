package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moviebot/internal/config"
	"moviebot/internal/models"
	"moviebot/internal/session"
	"moviebot/internal/storage"
	"moviebot/internal/storage/stubs"
)

func TestUserFlow_StartUnlockAndNotFound(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(1001)

	tb.handle(commandUpdate(userID, CommandStart))

	greeting := tb.api.lastTo(t, userID)
	assert.Equal(t, greetingText, greeting.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, greeting.ReplyMarkup)
	assert.Equal(t, session.StateIdle, tb.state(t, userID).State)

	user, err := tb.db.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user)

	// First two presses ask to subscribe
	for i := 1; i < ClickThreshold; i++ {
		tb.handle(textUpdate(userID, ButtonEnterCode))

		msg := tb.api.lastTo(t, userID)
		assert.Contains(t, msg.Text, "подписаться на каналы")
		assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
		assert.True(t, msg.DisableWebPagePreview)
		assert.Equal(t, session.StateIdle, tb.state(t, userID).State)
	}

	// Third press unlocks code entry instead of a third subscribe message
	tb.handle(textUpdate(userID, ButtonEnterCode))
	assert.Equal(t, enterCodeText, tb.api.lastTo(t, userID).Text)
	assert.Equal(t, session.StateAwaitingCode, tb.state(t, userID).State)

	user, err = tb.db.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, user.ClickCount)

	tb.handle(textUpdate(userID, "ABC123"))
	assert.Equal(t, movieNotFoundText, tb.api.lastTo(t, userID).Text)
	assert.Equal(t, session.StateIdle, tb.state(t, userID).State)

	// 1 greeting, 2 subscribe messages, 1 prompt, 1 not found
	assert.Len(t, tb.api.messagesTo(userID), 5)

	recorded := tb.redemptions.Redemptions()
	require.Len(t, recorded, 1)
	assert.Equal(t, "ABC123", recorded[0].Code)
	assert.False(t, recorded[0].Found)
}

func TestUserFlow_SubscribeMessageLinks(t *testing.T) {
	tb := newTestBot(t)
	userID := int64(1002)

	tb.handle(textUpdate(userID, ButtonEnterCode))

	text := tb.api.lastTo(t, userID).Text
	assert.Contains(t, text, `<a href="https://t.me/+abc">MORE MOVIES</a>`)
	assert.Contains(t, text, `<a href="https://t.me/news">News</a>`)
	assert.Contains(t, text, "Благодарим за поддержку!")
}

func TestUserFlow_RedeemFoundCode(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(1003)

	added, err := tb.db.AddMovie(ctx, "X1", "My Movie")
	require.NoError(t, err)
	require.True(t, added)

	require.NoError(t, tb.sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	tb.handle(textUpdate(userID, "  X1 \n"))

	assert.Equal(t, "Название фильма: My Movie", tb.api.lastTo(t, userID).Text)
	assert.Equal(t, session.StateIdle, tb.state(t, userID).State)

	movie, err := tb.db.GetMovieByCode(ctx, "X1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, movie.UsageCount)

	recorded := tb.redemptions.Redemptions()
	require.Len(t, recorded, 1)
	assert.True(t, recorded[0].Found)
	assert.Equal(t, userID, recorded[0].UserID)
}

func TestUserFlow_CodesAreCaseSensitive(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(1004)

	_, err := tb.db.AddMovie(ctx, "abc", "Lower")
	require.NoError(t, err)
	require.NoError(t, tb.sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	tb.handle(textUpdate(userID, "ABC"))

	assert.Equal(t, movieNotFoundText, tb.api.lastTo(t, userID).Text)
}

func TestUserFlow_EmptyCodeReprompts(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(1005)

	require.NoError(t, tb.sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	tb.handle(textUpdate(userID, "   "))

	assert.Equal(t, enterCodeText, tb.api.lastTo(t, userID).Text)
	assert.Equal(t, session.StateAwaitingCode, tb.state(t, userID).State)
}

func TestUserFlow_StartResetsStuckFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(1006)

	require.NoError(t, tb.sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	tb.handle(commandUpdate(userID, CommandStart))

	assert.Equal(t, greetingText, tb.api.lastTo(t, userID).Text)
	assert.Equal(t, session.StateIdle, tb.state(t, userID).State)
}

func TestUserFlow_IdleTextIsIgnored(t *testing.T) {
	tb := newTestBot(t)
	userID := int64(1007)

	tb.handle(textUpdate(userID, "hello"))

	assert.Empty(t, tb.api.messagesTo(userID))

	// The user is still recorded
	user, err := tb.db.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Test", *user.FirstName)
	assert.Nil(t, user.Username)
}

// faultyDB fails chosen operations with a storage fault
type faultyDB struct {
	*stubs.MockDB
	failLookup bool
	failUsage  bool
	panicClick bool
	panicJoin  bool
}

func (f *faultyDB) GetMovieByCode(ctx context.Context, code string) (*models.Movie, error) {
	if f.failLookup {
		return nil, storage.Fault("get movie", errors.New("connection refused"))
	}
	return f.MockDB.GetMovieByCode(ctx, code)
}

func (f *faultyDB) IncrementMovieUsage(ctx context.Context, code string) (bool, error) {
	if f.failUsage {
		return false, storage.Fault("increment usage", errors.New("connection reset"))
	}
	return f.MockDB.IncrementMovieUsage(ctx, code)
}

func (f *faultyDB) AddJoinRequest(ctx context.Context, userID, channelID int64, status models.JoinRequestStatus) error {
	if f.panicJoin {
		panic("unexpected nil row")
	}
	return f.MockDB.AddJoinRequest(ctx, userID, channelID, status)
}

func (f *faultyDB) IncrementClickCount(ctx context.Context, userID int64) (int, error) {
	if f.panicClick {
		panic("unexpected nil row")
	}
	return f.MockDB.IncrementClickCount(ctx, userID)
}

func newFaultyBot(t *testing.T, db *faultyDB) (*Bot, *fakeAPI, *session.MemoryStore) {
	t.Helper()
	api := newFakeAPI()
	sessions := session.NewMemoryStore(0)
	b := newBot(api, db, sessions, nil, Options{AdminIDs: []int64{adminID}}, zap.NewNop())
	t.Cleanup(b.Stop)
	return b, api, sessions
}

func TestUserFlow_StorageFaultKeepsSession(t *testing.T) {
	ctx := context.Background()
	userID := int64(1008)

	b, api, sessions := newFaultyBot(t, &faultyDB{MockDB: stubs.NewMockDB(), failLookup: true})
	require.NoError(t, sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	b.HandleUpdate(ctx, textUpdate(userID, "X1"))

	assert.Equal(t, failureText, api.lastTo(t, userID).Text)

	s, err := sessions.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingCode, s.State)
}

func TestUserFlow_PanicIsRecovered(t *testing.T) {
	ctx := context.Background()
	userID := int64(1009)

	b, api, _ := newFaultyBot(t, &faultyDB{MockDB: stubs.NewMockDB(), panicClick: true})

	assert.NotPanics(t, func() {
		b.HandleUpdate(ctx, textUpdate(userID, ButtonEnterCode))
	})
	assert.Equal(t, failureText, api.lastTo(t, userID).Text)
}

func TestUserFlow_UsageFaultSendsNoTitle(t *testing.T) {
	ctx := context.Background()
	userID := int64(1010)

	db := &faultyDB{MockDB: stubs.NewMockDB(), failUsage: true}
	_, err := db.AddMovie(ctx, "X1", "My Movie")
	require.NoError(t, err)

	b, api, sessions := newFaultyBot(t, db)
	require.NoError(t, sessions.Set(ctx, userID, session.New(session.StateAwaitingCode, nil)))

	b.HandleUpdate(ctx, textUpdate(userID, "X1"))

	msgs := api.messagesTo(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, failureText, msgs[0].Text)

	s, err := sessions.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingCode, s.State)

	// The retry succeeds once storage is back
	db.failUsage = false
	b.HandleUpdate(ctx, textUpdate(userID, "X1"))
	assert.Equal(t, "Название фильма: My Movie", api.lastTo(t, userID).Text)

	movie, err := db.GetMovieByCode(ctx, "X1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, movie.UsageCount)
}

func TestJoinRequest_PanicIsRecovered(t *testing.T) {
	userID := int64(1011)

	api := newFakeAPI()
	db := &faultyDB{MockDB: stubs.NewMockDB(), panicJoin: true}
	b := newBot(api, db, session.NewMemoryStore(0), nil, Options{
		Channels: config.Channels{{ID: channelID, Title: "Movies"}},
		Workers:  1,
	}, zap.NewNop())
	t.Cleanup(b.Stop)

	assert.NotPanics(t, func() {
		b.HandleUpdate(context.Background(), joinRequestUpdate(userID, channelID))
	})
	assert.Zero(t, api.requestCount())

	// The only worker survives the panic and serves the next update
	b.Submit(joinRequestUpdate(userID, channelID))
	b.Submit(commandUpdate(userID, CommandStart))
	b.dispatcher.Stop()

	assert.Equal(t, greetingText, api.lastTo(t, userID).Text)
}
