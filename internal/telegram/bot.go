// Package telegram adapts the Telegram Bot API to the conversation
// engine: it long-polls for updates, maps them onto engine events,
// serializes processing per user, and renders engine responses back as
// messages with inline keyboards.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/bazarko/go-supplier-bot/internal/conversation"
)

// Handler processes one mapped user event. Implemented by the
// conversation engine.
type Handler interface {
	HandleEvent(ctx context.Context, userID int64, ev conversation.Event) (conversation.Response, error)
}

// botAPI is the slice of *tgbotapi.BotAPI the bot consumes, narrowed for
// testing.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	StopReceivingUpdates()
}

// Options tune polling and per-user dispatch.
type Options struct {
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int
	// QueueIdle is how long an idle per-user worker lives before eviction.
	QueueIdle time.Duration
	// MaxPhotoBytes caps photo downloads. Larger files are rejected before
	// the engine sees them.
	MaxPhotoBytes int64
	// HTTPClient downloads photo files; a 30s-timeout default is used when
	// nil.
	HTTPClient *http.Client
}

func (o *Options) fill() {
	if o.PollTimeout <= 0 {
		o.PollTimeout = 30
	}
	if o.QueueIdle <= 0 {
		o.QueueIdle = 5 * time.Minute
	}
	if o.MaxPhotoBytes <= 0 {
		o.MaxPhotoBytes = 10 << 20
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

const msgPhotoFetchFailed = "Couldn't download that photo, please send it again."

// Bot is the Telegram transport. It is also the engine's Notifier: private
// chat ids equal user ids, so background completions are delivered
// directly.
type Bot struct {
	api     botAPI
	opts    Options
	log     zerolog.Logger
	handler Handler

	runCtx context.Context

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

// New connects to the Bot API with the given token.
func New(token string, log zerolog.Logger, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return newBot(api, log, opts), nil
}

func newBot(api botAPI, log zerolog.Logger, opts Options) *Bot {
	opts.fill()
	return &Bot{
		api:    api,
		opts:   opts,
		log:    log,
		queues: make(map[int64]chan tgbotapi.Update),
	}
}

// Run polls for updates and dispatches them until ctx is cancelled. Events
// for the same user are handled strictly in order; different users run in
// parallel.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	b.handler = handler
	b.runCtx = ctx

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.opts.PollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.dispatch(upd)
		}
	}
}

// dispatch routes one update to the sender's serial queue, creating the
// queue and its worker on first use. The channel send happens under the
// map lock so a worker can never evict a queue that just received work.
func (b *Bot) dispatch(upd tgbotapi.Update) {
	userID := senderID(upd)
	if userID == 0 {
		return
	}

	b.mu.Lock()
	q, ok := b.queues[userID]
	if !ok {
		q = make(chan tgbotapi.Update, 16)
		b.queues[userID] = q
		b.wg.Add(1)
		go b.worker(userID, q)
	}
	select {
	case q <- upd:
	default:
		b.log.Warn().Int64("user_id", userID).Msg("update queue full, dropping")
	}
	b.mu.Unlock()
}

// worker drains one user's queue in order and evicts itself after the idle
// period.
func (b *Bot) worker(userID int64, q chan tgbotapi.Update) {
	defer b.wg.Done()
	idle := time.NewTimer(b.opts.QueueIdle)
	defer idle.Stop()

	for {
		select {
		case <-b.runCtx.Done():
			return
		case upd := <-q:
			b.process(userID, upd)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(b.opts.QueueIdle)
		case <-idle.C:
			b.mu.Lock()
			if len(q) == 0 {
				delete(b.queues, userID)
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
			idle.Reset(b.opts.QueueIdle)
		}
	}
}

// process maps one update to an engine event, runs it, and replies.
func (b *Bot) process(userID int64, upd tgbotapi.Update) {
	ctx := b.runCtx

	if cq := upd.CallbackQuery; cq != nil {
		// Ack immediately so the client stops its spinner regardless of
		// how long the engine takes.
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.log.Warn().Err(err).Msg("callback ack")
		}
	}

	ev, ok := b.toEvent(ctx, userID, upd)
	if !ok {
		return
	}
	ev.From = senderUsername(upd)

	resp, err := b.handler.HandleEvent(ctx, userID, ev)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("handle event")
		return
	}
	b.send(userID, resp)
}

// senderID extracts the acting user from an update.
func senderID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	default:
		return 0
	}
}

// senderUsername extracts the acting user's @username, empty when unset.
func senderUsername(upd tgbotapi.Update) string {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.UserName
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.UserName
	default:
		return ""
	}
}

// toEvent maps a Telegram update onto the engine's event model. Photos are
// fetched eagerly so the engine only ever sees raw bytes.
func (b *Bot) toEvent(ctx context.Context, userID int64, upd tgbotapi.Update) (conversation.Event, bool) {
	switch {
	case upd.CallbackQuery != nil:
		return conversation.Event{Type: conversation.EventButton, Button: upd.CallbackQuery.Data}, true

	case upd.Message != nil && upd.Message.IsCommand():
		return conversation.Event{Type: conversation.EventCommand, Command: "/" + upd.Message.Command()}, true

	case upd.Message != nil && len(upd.Message.Photo) > 0:
		// Telegram offers several sizes; the last is the largest.
		sizes := upd.Message.Photo
		data, err := b.fetchPhoto(ctx, sizes[len(sizes)-1].FileID)
		if err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("photo download")
			b.send(userID, conversation.Response{Text: msgPhotoFetchFailed})
			return conversation.Event{}, false
		}
		return conversation.Event{
			Type:  conversation.EventPhoto,
			Photo: &conversation.Photo{Data: data, ContentType: "image/jpeg"},
		}, true

	case upd.Message != nil && upd.Message.Text != "":
		return conversation.Event{Type: conversation.EventText, Text: upd.Message.Text}, true

	default:
		return conversation.Event{}, false
	}
}

// fetchPhoto downloads a file by id, bounded by MaxPhotoBytes.
func (b *Bot) fetchPhoto(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, b.opts.MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.opts.MaxPhotoBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", b.opts.MaxPhotoBytes)
	}
	return data, nil
}

// Notify implements conversation.Notifier for background completions.
func (b *Bot) Notify(ctx context.Context, userID int64, resp conversation.Response) {
	b.send(userID, resp)
}

// send renders a Response as a message with an optional inline keyboard.
func (b *Bot) send(userID int64, resp conversation.Response) {
	if resp.Text == "" {
		return
	}
	msg := tgbotapi.NewMessage(userID, resp.Text)
	if len(resp.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(resp.Buttons))
		for _, row := range resp.Buttons {
			btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
			rows = append(rows, btns)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("send message")
	}
}
