package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
	"github.com/taskops/telegram-bridge/internal/biz/repo"
	"github.com/taskops/telegram-bridge/internal/runner"
	"github.com/taskops/telegram-bridge/telegram"
)

// UpdateSource is the poll side of the chat platform. *telegram.Client
// satisfies it; tests substitute a fake.
type UpdateSource interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	DeleteWebhook(ctx context.Context) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// JobRunner is the subprocess orchestrator capability the bridge needs.
// *runner.Runner satisfies it.
type JobRunner interface {
	Start(mode string) error
	InFlight() bool
	Wait()
	SetOnComplete(fn func(runner.Result))
}

// Options are the bridge's identity and tunables, resolved once at startup.
type Options struct {
	AllowedChat    int64
	AllowAnyChat   bool
	PollTimeout    time.Duration
	Tunables       domain.PollTunables
	NotifyCooldown time.Duration
	Debug          bool
}

// Bridge is the controller owning all mutable poll-loop state: the offset,
// the backoff counters, the pending flow and the selected model. Everything
// here is mutated only by the single poll loop; the one exception is the
// subprocess completion callback, which touches none of this state.
type Bridge struct {
	opts Options

	source    UpdateSource
	messenger repo.Messenger
	board     repo.Board
	inference repo.Inference
	prefs     repo.Prefs
	runLog    repo.RunLog
	jobs      JobRunner
	notifier  *Notifier

	offset  int64
	backoff domain.BackoffState
	flow    domain.PendingFlow
	model   string

	// lastRunChat is where the next subprocess summary goes. Single-flight
	// makes a single slot sufficient.
	runMu       sync.Mutex
	lastRunChat int64

	now func() time.Time

	// lifeMu guards the lifecycle state; Stop runs on the signal goroutine.
	lifeMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
}

// NewBridge wires the controller. now may be nil for the real clock.
func NewBridge(
	opts Options,
	source UpdateSource,
	messenger repo.Messenger,
	board repo.Board,
	inference repo.Inference,
	prefs repo.Prefs,
	runLog repo.RunLog,
	jobs JobRunner,
	now func() time.Time,
) *Bridge {
	if now == nil {
		now = time.Now
	}
	b := &Bridge{
		opts:      opts,
		source:    source,
		messenger: messenger,
		board:     board,
		inference: inference,
		prefs:     prefs,
		runLog:    runLog,
		jobs:      jobs,
		notifier:  NewNotifier(messenger, opts.AllowedChat, opts.NotifyCooldown, now),
		now:       now,
		stopCh:    make(chan struct{}),
	}
	jobs.SetOnComplete(b.handleRunComplete)
	return b
}

// Start runs the poll loop until Stop is called. It blocks.
func (b *Bridge) Start() error {
	b.lifeMu.Lock()
	if b.running {
		b.lifeMu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.running = true
	b.cancel = cancel
	b.lifeMu.Unlock()
	defer cancel()

	if me, err := b.source.GetMe(ctx); err != nil {
		fmt.Printf("[Bridge] getMe failed: %v\n", err)
	} else {
		fmt.Printf("[Bridge] Authorized as @%s (id=%d)\n", me.Username, me.ID)
	}

	// Polling must be the sole delivery mode; a leftover webhook would make
	// getUpdates return nothing.
	if err := b.source.DeleteWebhook(ctx); err != nil {
		fmt.Printf("[Bridge] deleteWebhook failed: %v\n", err)
	}

	b.model = b.prefs.Load().Model
	fmt.Printf("[Bridge] Inference model: %s\n", b.model)

	if b.opts.AllowAnyChat {
		fmt.Println("[Bridge] WARNING: ALLOW_ANY_CHAT is enabled; every conversation is authorized")
	} else if b.opts.AllowedChat == 0 {
		fmt.Println("[Bridge] No allowed chat configured; commands are disabled until TELEGRAM_CHAT_ID is set")
	}

	fmt.Printf("[Bridge] Polling started (allowed_chat=%d, poll_timeout=%v)\n", b.opts.AllowedChat, b.opts.PollTimeout)

loop:
	for {
		select {
		case <-b.stopCh:
			break loop
		default:
		}

		delay := b.pollOnce(ctx)

		select {
		case <-b.stopCh:
			break loop
		case <-time.After(delay):
		}
	}

	fmt.Println("[Bridge] Poll loop stopped")
	// Let an in-flight recovery run finish reporting before we return, so
	// its summary and journal entry are not dropped.
	b.jobs.Wait()
	return nil
}

// Stop signals the poll loop to exit and aborts any in-flight long poll.
func (b *Bridge) Stop() {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	b.cancel()
	close(b.stopCh)
}

// pollOnce performs one long poll, dispatches its batch, and returns the
// delay before the next poll. This is the only place the offset advances.
func (b *Bridge) pollOnce(ctx context.Context) time.Duration {
	updates, err := b.source.GetUpdates(ctx, b.offset, b.opts.PollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cancelled the poll; not a failure.
			return 0
		}
		kind := classifyPollError(err)
		delay := b.backoff.Next(kind, b.opts.Tunables)

		switch kind {
		case domain.FailConflict:
			fmt.Printf("[Bridge] Poll conflict (409), backing off %v: %v\n", delay, err)
			b.notifier.NotifyOnce(ctx, domain.NotifyConflict,
				"Polling continues with backoff; stop the other bot instance to restore control.")
		case domain.FailUnauthorized:
			fmt.Printf("[Bridge] Credential rejected (401), retrying in %v\n", delay)
			b.notifier.NotifyOnce(ctx, domain.NotifyUnauthorized,
				"Check TELEGRAM_BOT_TOKEN; polling retries once a minute until it is fixed.")
		default:
			fmt.Printf("[Bridge] Poll failed, retrying in %v: %v\n", delay, err)
		}
		return delay
	}

	// Process strictly in ascending update order, then advance the offset
	// past the whole batch.
	sort.Slice(updates, func(i, j int) bool { return updates[i].UpdateID < updates[j].UpdateID })
	for _, u := range updates {
		if du, ok := flatten(u); ok {
			b.dispatch(ctx, du)
		}
		if u.UpdateID >= b.offset {
			b.offset = u.UpdateID + 1
		}
	}

	return b.backoff.Next(domain.FailNone, b.opts.Tunables)
}

// classifyPollError maps a getUpdates error to the poller's failure taxonomy.
func classifyPollError(err error) domain.FailureKind {
	var reqErr *telegram.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode {
		case 409:
			return domain.FailConflict
		case 401:
			return domain.FailUnauthorized
		}
	}
	return domain.FailOther
}

// flatten converts a transport update into the domain shape. Updates that
// carry neither text nor callback data are dropped.
func flatten(u telegram.Update) (*domain.Update, bool) {
	du := &domain.Update{UpdateID: u.UpdateID}

	if cq := u.CallbackQuery; cq != nil {
		du.CallbackID = cq.ID
		du.CallbackData = cq.Data
		if cq.Message != nil && cq.Message.Chat != nil {
			du.ChatID = cq.Message.Chat.ID
			du.MessageID = cq.Message.MessageID
		}
		if cq.From != nil {
			du.SenderID = cq.From.ID
		}
		return du, du.ChatID != 0
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return nil, false
	}
	du.ChatID = msg.Chat.ID
	du.MessageID = msg.MessageID
	du.Text = msg.Text
	if msg.From != nil {
		du.SenderID = msg.From.ID
	}
	return du, true
}

// dispatch authorizes and routes one update. A panicking handler is contained
// here so one bad update cannot stop the batch.
func (b *Bridge) dispatch(ctx context.Context, u *domain.Update) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Bridge] Handler panic on update %d: %v\n", u.UpdateID, r)
		}
	}()

	if b.opts.Debug {
		fmt.Printf("[Bridge] Update %d chat=%d text=%q callback=%q\n", u.UpdateID, u.ChatID, u.Text, u.CallbackData)
	}

	if !b.authorize(ctx, u) {
		return
	}

	// Lazily expire a stale flow before resolving.
	flowLive := b.flow.Live(b.now())
	if b.flow.Active && !flowLive {
		b.flow.Clear()
	}

	cmd := domain.Resolve(u, flowLive)

	if u.IsCallback() {
		// Acknowledge the press so the button stops spinning.
		_ = b.messenger.AnswerCallback(ctx, u.CallbackID, "")
	}

	b.handle(ctx, u, cmd)
}

// authorize enforces the single-conversation policy. Fail-closed: with no
// allowed chat configured and no override, nothing is executed.
func (b *Bridge) authorize(ctx context.Context, u *domain.Update) bool {
	if b.opts.AllowAnyChat {
		return true
	}
	if b.opts.AllowedChat == 0 {
		b.notifier.HintOnce(ctx, domain.NotifyHint, u.ChatID,
			fmt.Sprintf("This bridge has no allowed conversation configured. Set TELEGRAM_CHAT_ID=%d to enable commands.", u.ChatID))
		return false
	}
	if u.ChatID != b.opts.AllowedChat {
		fmt.Printf("[Bridge] Dropping update from unauthorized chat %d\n", u.ChatID)
		b.notifier.HintOnce(ctx, domain.NotifyKind("stranger"), u.ChatID,
			"This conversation is not authorized to control the task board.")
		return false
	}
	return true
}
