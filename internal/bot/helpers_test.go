package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moviebot/internal/config"
	"moviebot/internal/session"
	"moviebot/internal/storage/stubs"
)

const (
	adminID   = int64(42)
	channelID = int64(-1001)
)

var errSendFailed = errors.New("Forbidden: bot was blocked by the user")

// fakeAPI records outgoing calls instead of talking to Telegram
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable

	failChats      map[int64]bool
	failedRequests int
	// gates hold sends to a chat until the channel is closed
	gates map[int64]chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		failChats: make(map[int64]bool),
		gates:     make(map[int64]chan struct{}),
	}
}

// gate makes sends to chatID wait until the returned func is called
func (f *fakeAPI) gate(chatID int64) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[chatID] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}

	f.mu.Lock()
	gate := f.gates[msg.ChatID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failChats[msg.ChatID] {
		return tgbotapi.Message{}, errSendFailed
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	if f.failedRequests > 0 {
		f.failedRequests--
		return nil, errors.New("Too Many Requests: retry after 1")
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{}, nil
}

func (f *fakeAPI) StopReceivingUpdates() {}

// messagesTo returns every message delivered to the chat
func (f *fakeAPI) messagesTo(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.MessageConfig
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeAPI) textsTo(chatID int64) []string {
	var out []string
	for _, msg := range f.messagesTo(chatID) {
		out = append(out, msg.Text)
	}
	return out
}

// lastTo returns the last message delivered to the chat
func (f *fakeAPI) lastTo(t *testing.T, chatID int64) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messagesTo(chatID)
	require.NotEmpty(t, msgs, "no messages sent to chat %d", chatID)
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type testBot struct {
	*Bot
	api         *fakeAPI
	db          *stubs.MockDB
	sessions    *session.MemoryStore
	redemptions *stubs.MockRedemptionLog
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	api := newFakeAPI()
	db := stubs.NewMockDB()
	sessions := session.NewMemoryStore(0)
	redemptions := stubs.NewMockRedemptionLog()

	b := newBot(api, db, sessions, redemptions, Options{
		AdminIDs: []int64{adminID},
		Channels: config.Channels{
			{ID: channelID, Title: "[MORE MOVIES](https://t.me/+abc)"},
			{ID: -1002, Title: "News", Link: "https://t.me/news"},
		},
		Approval:    ApprovalPolicy{Retries: 2, Backoff: time.Millisecond},
		Workers:     4,
		WorkerQueue: 16,
	}, zap.NewNop())
	t.Cleanup(b.Stop)

	return &testBot{Bot: b, api: api, db: db, sessions: sessions, redemptions: redemptions}
}

// handle processes one update synchronously
func (tb *testBot) handle(update tgbotapi.Update) {
	tb.HandleUpdate(context.Background(), update)
}

func (tb *testBot) state(t *testing.T, userID int64) session.Session {
	t.Helper()
	s, err := tb.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID, FirstName: "Test"},
			Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	update := textUpdate(userID, "/"+command)
	update.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(command) + 1},
	}
	return update
}

func joinRequestUpdate(userID, chatID int64) tgbotapi.Update {
	return tgbotapi.Update{
		ChatJoinRequest: &tgbotapi.ChatJoinRequest{
			Chat: tgbotapi.Chat{ID: chatID, Type: "channel"},
			From: tgbotapi.User{ID: userID},
		},
	}
}
