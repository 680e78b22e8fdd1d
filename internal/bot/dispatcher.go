package bot

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var (
	// ErrDispatcherStopped is returned by Submit after Stop
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	// ErrUserQueueFull is returned when a user already has too many pending updates
	ErrUserQueueFull = errors.New("user update queue is full")
)

const defaultUserQueue = 64

// UpdateHandler handles a single update
type UpdateHandler func(ctx context.Context, update tgbotapi.Update)

// Dispatcher hands updates to a fixed set of workers.
// Each user has a private FIFO queue that at most one worker drains at a
// time, so updates of one user are handled in arrival order while a slow
// user never holds back anybody else. Submit never blocks.
type Dispatcher struct {
	handler   UpdateHandler
	logger    *zap.Logger
	userQueue int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[int64][]tgbotapi.Update
	// scheduled holds users that sit in ready or are being served by a worker
	scheduled map[int64]bool
	ready     []int64
	stopped   bool
}

// NewDispatcher starts workers goroutines. userQueue caps the number of
// pending updates per user.
func NewDispatcher(workers, userQueue int, handler UpdateHandler, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if userQueue < 1 {
		userQueue = defaultUserQueue
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		handler:   handler,
		logger:    logger,
		userQueue: userQueue,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[int64][]tgbotapi.Update),
		scheduled: make(map[int64]bool),
	}
	d.cond = sync.NewCond(&d.mu)

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		userID, update, ok := d.next()
		if !ok {
			return
		}
		d.handler(d.ctx, update)
		d.done(userID)
	}
}

// next takes the oldest update of the first ready user. It reports false
// once the dispatcher is stopped and nothing is left to handle.
func (d *Dispatcher) next() (int64, tgbotapi.Update, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.ready) == 0 {
		if d.stopped {
			return 0, tgbotapi.Update{}, false
		}
		d.cond.Wait()
	}

	userID := d.ready[0]
	d.ready = d.ready[1:]

	queue := d.pending[userID]
	update := queue[0]
	if len(queue) == 1 {
		delete(d.pending, userID)
	} else {
		d.pending[userID] = queue[1:]
	}
	return userID, update, true
}

// done puts the user back in line when more of their updates are waiting
func (d *Dispatcher) done(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending[userID]) == 0 {
		delete(d.scheduled, userID)
		return
	}
	d.ready = append(d.ready, userID)
	d.cond.Signal()
}

// Submit enqueues an update on its user's queue
func (d *Dispatcher) Submit(update tgbotapi.Update) error {
	userID := updateUserID(update)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	if len(d.pending[userID]) >= d.userQueue {
		return ErrUserQueueFull
	}

	d.pending[userID] = append(d.pending[userID], update)
	if !d.scheduled[userID] {
		d.scheduled[userID] = true
		d.ready = append(d.ready, userID)
		d.cond.Signal()
	}
	return nil
}

// Stop drains queued updates and waits for the workers to exit
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.cond.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Info("Update dispatcher stopped")
}

// updateUserID returns the user an update belongs to, or 0 when it has none
func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.ChatJoinRequest != nil:
		return update.ChatJoinRequest.From.ID
	}
	return 0
}
