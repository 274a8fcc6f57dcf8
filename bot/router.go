package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"leetbot/telegraph"
	"leetbot/types"
)

const (
	// PageSize is the number of results per inline page
	PageSize = 5
	// MaxResults caps how many results a search keeps
	MaxResults = 10

	// DefaultHandlerTimeout bounds one update when no timeout is configured
	DefaultHandlerTimeout = 2 * time.Minute

	// Telegram rejects longer message texts
	maxMessageLength = 4096
)

// Messenger is the part of the Bot API client the router talks to
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Searcher finds torrents and resolves their details
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest, progress types.ProgressFunc) ([]types.SearchResultItem, error)
	Info(ctx context.Context, link string) (types.TorrentDetail, error)
}

// Publisher turns formatted results into a public page
type Publisher interface {
	CreatePage(ctx context.Context, title, htmlContent string) (*telegraph.Page, error)
}

// Mirrorer submits a magnet to a cloud torrent service and returns the
// URL of the resulting folder
type Mirrorer interface {
	Enabled() bool
	Mirror(ctx context.Context, magnet string) (string, error)
}

type Options struct {
	Messenger Messenger
	Searcher  Searcher
	Publisher Publisher
	// optional; mirror buttons are hidden without it
	Mirrorer Mirrorer
	Sessions *SessionStore

	HandlerTimeout time.Duration
}

// Router dispatches Telegram updates to the command and callback handlers
type Router struct {
	messenger Messenger
	searcher  Searcher
	formatter *Formatter
	publisher Publisher
	mirrorer  Mirrorer
	sessions  *SessionStore
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewRouter(opts Options) *Router {
	timeout := opts.HandlerTimeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}

	return &Router{
		messenger: opts.Messenger,
		searcher:  opts.Searcher,
		formatter: NewFormatter(opts.Searcher),
		publisher: opts.Publisher,
		mirrorer:  opts.Mirrorer,
		sessions:  opts.Sessions,
		timeout:   timeout,
	}
}

// Run handles updates until ctx is done or the channel closes, each update
// in its own goroutine, then waits for the handlers still in flight.
func (r *Router) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			r.Dispatch(ctx, update)
		}
	}
}

// Dispatch handles one update in the background. In-flight handlers are not
// cut short by ctx cancellation, only by the handler timeout.
func (r *Router) Dispatch(ctx context.Context, update tgbotapi.Update) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		r.HandleUpdate(hctx, update)
	}()
}

// Wait blocks until every dispatched update has been handled
func (r *Router) Wait() {
	r.wg.Wait()
}

// HandleUpdate runs the matching handler synchronously. Handler errors and
// panics are logged and answered with a generic message.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.handleError(update, errors.Errorf("panic: %v", rec))
		}
	}()

	if err := r.route(ctx, update); err != nil {
		r.handleError(update, err)
	}
}

func (r *Router) route(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		switch msg.Command() {
		case "start":
			return r.reply(msg, startText)
		case "help":
			return r.reply(msg, helpText)
		case "search":
			return r.handleSearch(ctx, msg)
		}
		zap.S().Debugf("Ignoring unknown command /%s", msg.Command())
	case update.CallbackQuery != nil:
		return r.handleCallback(ctx, update.CallbackQuery)
	}
	return nil
}

func (r *Router) handleError(update tgbotapi.Update, err error) {
	zap.L().Error("❌ Exception while handling an update",
		zap.Int("update_id", update.UpdateID), zap.Error(err))

	chatID, ok := chatOf(update)
	if !ok {
		return
	}
	if _, err := r.messenger.Send(tgbotapi.NewMessage(chatID, genericErrorText)); err != nil {
		zap.S().Errorf("❌ Failed to send error message to chat %d: %v", chatID, err)
	}
}

// chatOf finds the chat an update belongs to, for messages and for
// callbacks attached to one of the bot's messages
func chatOf(update tgbotapi.Update) (int64, bool) {
	if update.Message != nil && update.Message.Chat != nil {
		return update.Message.Chat.ID, true
	}
	if q := update.CallbackQuery; q != nil && q.Message != nil && q.Message.Chat != nil {
		return q.Message.Chat.ID, true
	}
	return 0, false
}

func (r *Router) mirrorEnabled() bool {
	return r.mirrorer != nil && r.mirrorer.Enabled()
}

func (r *Router) reply(msg *tgbotapi.Message, text string) error {
	_, err := r.send(tgbotapi.NewMessage(msg.Chat.ID, text))
	return err
}

func (r *Router) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := r.messenger.Send(c)
	if err != nil {
		return m, errors.Wrap(err, "telegram send")
	}
	return m, nil
}
