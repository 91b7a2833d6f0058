package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bazarko/go-supplier-bot/internal/ai"
	"github.com/bazarko/go-supplier-bot/internal/cache"
	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/retry"
	"github.com/bazarko/go-supplier-bot/internal/store"
)

// Store is the slice of the Data Store facade the engine consumes. All
// writes are idempotent under the caller-supplied token.
type Store interface {
	AppendSupplier(ctx context.Context, token string, chatID int64, displayName, contactName string, locs []store.LocationDraft) (*domain.Supplier, error)
	AppendLocation(ctx context.Context, token, supplierID string, draft store.LocationDraft) (*domain.Location, error)
	AppendProduct(ctx context.Context, token string, p *domain.Product) (*domain.Product, error)
	QueryBySupplierID(ctx context.Context, chatID int64) (*store.Profile, error)
	Locations(ctx context.Context, supplierID string) ([]domain.Location, error)
	RecentProducts(ctx context.Context, supplierID string, limit int) ([]domain.Product, error)
	UpdateProductEnhancement(ctx context.Context, productID, imageURL, description string) error
}

// Limiter gates the AI-backed features against per-user daily quotas.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, token string, userID int64, feature string, limit int) (bool, error)
	Remaining(ctx context.Context, userID int64, feature string, limit int) (int, error)
}

// ReadCache bounds Data Store query volume for read-heavy paths.
type ReadCache interface {
	GetOrFetch(ctx context.Context, key string, fetch cache.FetchFunc) (any, error)
	InvalidatePrefix(prefix string)
}

// ObjectStore stores uploaded images and returns retrievable references.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// Notifier delivers responses produced by background completions (the
// user-facing reply for the triggering event has long been sent by then).
type Notifier interface {
	Notify(ctx context.Context, userID int64, resp Response)
}

// Deps are the engine's collaborators, injected at construction.
type Deps struct {
	Store      Store
	Cache      ReadCache
	Limiter    Limiter
	Recognizer ai.Recognizer
	Enhancer   ai.Enhancer
	Objects    ObjectStore
	Notifier   Notifier
	Log        zerolog.Logger
}

// Options tune flow behavior.
type Options struct {
	MaxPhotosPerBatch     int
	MaxPhotoBytes         int64
	AutoEnhance           bool
	RecognitionDailyLimit int
	EnhancementDailyLimit int
	Retry                 retry.Policy
}

// Engine is the conversation state machine. Safe for concurrent use;
// events for one user are serialized on that user's session.
type Engine struct {
	deps Deps
	opts Options

	sessions sessionMap

	// Background tasks (recognition batches, saves, enhancements).
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup

	// newToken is a seam for deterministic tokens in tests.
	newToken func() string
}

// New constructs an engine. Call Close on shutdown to drain background
// tasks.
func New(deps Deps, opts Options) *Engine {
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		deps:     deps,
		opts:     opts,
		bgCtx:    bgCtx,
		bgCancel: cancel,
		newToken: uuid.NewString,
	}
}

// Close waits for in-flight background tasks, bounded by ctx. When the
// bound expires the tasks' context is cancelled and the error returned.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.bgCancel()
		return nil
	case <-ctx.Done():
		e.bgCancel()
		return ctx.Err()
	}
}

// HandleEvent routes one inbound user event to the handler for the user's
// current state and returns the immediate response. Long-latency work
// (recognition, save) is acknowledged immediately and completed in a
// background task that reports through the Notifier.
func (e *Engine) HandleEvent(ctx context.Context, userID int64, ev Event) (Response, error) {
	sess := e.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	convEvents.WithLabelValues(string(sess.state), string(ev.Type)).Inc()

	// Keep the latest known username; registration persists it as the
	// supplier's display name.
	if ev.From != "" {
		sess.displayName = ev.From
	}

	// Cancel is valid in every state and preempts busy flows: the stamp
	// bump makes any outstanding background result stale on arrival.
	if ev.Type == EventCommand && ev.Command == CmdCancel {
		return e.handleCancel(sess), nil
	}

	if sess.busy {
		return Response{Text: msgStillWorking}, nil
	}

	// First contact: resolve the user against the Data Store before
	// dispatching.
	if sess.state == StateNone {
		if resp, resolved := e.resolveUser(ctx, userID, sess); !resolved {
			return resp, nil
		}
		if sess.state == StateAwaitingName {
			// Brand-new user: greet and ask for the name. The first
			// event itself is consumed by the greeting unless it already
			// carries a usable name.
			if ev.Type == EventText && strings.TrimSpace(ev.Text) != "" {
				return e.handleAwaitingName(sess, ev), nil
			}
			return Response{Text: msgWelcomeNew}, nil
		}
	}

	switch sess.state {
	case StateAwaitingName:
		return e.handleAwaitingName(sess, ev), nil
	case StateAwaitingMarket:
		return e.handleAwaitingMarket(sess, ev), nil
	case StateAwaitingPavilion:
		return e.handleAwaitingPavilion(sess, ev), nil
	case StateAwaitingPhone:
		return e.handleAwaitingPhone(sess, ev), nil
	case StateAwaitingMorePhones:
		return e.handleAwaitingMorePhones(ctx, userID, sess, ev), nil
	case StateAwaitingAddLocationDecision:
		return e.handleAddLocationDecision(ctx, userID, sess, ev), nil
	case StateRegistered:
		return e.handleRegistered(ctx, userID, sess, ev), nil
	case StateAwaitingPhoto:
		return e.handleAwaitingPhoto(ctx, userID, sess, ev), nil
	case StateAwaitingPhotoConfirmation:
		return e.handlePhotoConfirmation(ctx, userID, sess, ev), nil
	case StateAwaitingLocationSelection:
		return e.handleLocationSelection(ctx, userID, sess, ev), nil
	case StateAwaitingQuantity:
		return e.handleQuantity(userID, sess, ev), nil
	default:
		return Response{}, fmt.Errorf("unknown conversation state %q", sess.state)
	}
}

// handleCancel discards all drafts and returns to the nearest stable
// state. The generation bump strands any in-flight background result.
func (e *Engine) handleCancel(sess *session) Response {
	sess.gen++
	sess.busy = false
	sess.clearDrafts()
	if sess.supplierID == "" && sess.state != StateNone {
		sess.state = StateAwaitingName
		return Response{Text: msgCancelledToReg}
	}
	if sess.state == StateNone {
		return Response{Text: msgWelcomeNew, Buttons: nil}
	}
	sess.state = StateRegistered
	return Response{Text: msgCancelled, Buttons: actionButtons()}
}

// resolveUser looks the user up through the read cache. On success the
// session state becomes StateRegistered or StateAwaitingName; resolved is
// false when the lookup failed transiently and the event should not be
// dispatched.
func (e *Engine) resolveUser(ctx context.Context, userID int64, sess *session) (Response, bool) {
	prof, err := e.profile(ctx, userID)
	switch {
	case err == nil:
		sess.supplierID = prof.Supplier.ID
		sess.state = StateRegistered
		return Response{}, true
	case errors.Is(err, repo.ErrNotFound):
		sess.state = StateAwaitingName
		return Response{}, true
	default:
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("resolve user")
		return Response{Text: msgProfileErr}, false
	}
}

// profile reads the supplier profile through the cache.
func (e *Engine) profile(ctx context.Context, userID int64) (*store.Profile, error) {
	v, err := e.deps.Cache.GetOrFetch(ctx, profileKey(userID), func(ctx context.Context) (any, error) {
		return e.deps.Store.QueryBySupplierID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Profile), nil
}

func profileKey(userID int64) string     { return fmt.Sprintf("supplier:%d:profile", userID) }
func supplierPrefix(userID int64) string { return fmt.Sprintf("supplier:%d:", userID) }

// invalidateSupplier drops every cached view of the user after a write.
func (e *Engine) invalidateSupplier(userID int64) {
	e.deps.Cache.InvalidatePrefix(supplierPrefix(userID))
}

// spawn runs fn as a tracked background task.
func (e *Engine) spawn(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.bgCtx)
	}()
}
