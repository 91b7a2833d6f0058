package conversation

import (
	"sync"

	"github.com/bazarko/go-supplier-bot/internal/ai"
)

// draftLocation accumulates the fields of a location being entered during
// registration.
type draftLocation struct {
	MarketName     string
	PavilionNumber string
	Phones         []string
}

// draftProduct is a recognized-but-unsaved product. SaveToken is assigned
// when the quantity is accepted and reused verbatim on user-triggered save
// retries, so a retried append never duplicates the product.
type draftProduct struct {
	Attrs     ai.Attributes
	ImageURL  string
	Quantity  int
	SaveToken string
}

// session is the ConversationState for one user: the current state tag,
// the accumulated draft fields, and the generation stamp that invalidates
// stale background results. At most one session per user exists and its
// mutex serializes all event processing for that user.
type session struct {
	mu sync.Mutex

	state State

	// gen is bumped on /cancel. Background completions compare their
	// captured value and discard the result on mismatch.
	gen uint64

	// busy marks an in-flight background phase (recognition batch or
	// product save). Non-cancel events are answered with a wait notice
	// while set.
	busy bool

	// Resolved supplier, empty until registration committed.
	supplierID string

	// displayName is the sender's messenger username, refreshed from each
	// inbound event that carries one.
	displayName string

	// Registration drafts.
	contactName string
	locations   []draftLocation
	cur         draftLocation

	// regToken keeps the registration commit idempotent across user
	// retries after a transient store failure.
	regToken string

	// Upload drafts.
	photos     []Photo
	drafts     []draftProduct
	locationID string

	// batchToken keeps the per-batch recognition quota check idempotent
	// across retries of the "done" action.
	batchToken string
}

// clearDrafts drops all in-progress data, leaving supplier identity and
// state untouched.
func (s *session) clearDrafts() {
	s.contactName = ""
	s.locations = nil
	s.cur = draftLocation{}
	s.regToken = ""
	s.photos = nil
	s.drafts = nil
	s.locationID = ""
	s.batchToken = ""
}

// sessionMap holds the per-user sessions. Sessions are created on demand
// and live for the process lifetime; the per-user footprint is a few
// pointers once drafts are cleared.
type sessionMap struct {
	mu sync.Mutex
	m  map[int64]*session
}

func (sm *sessionMap) get(userID int64) *session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.m == nil {
		sm.m = make(map[int64]*session)
	}
	s, ok := sm.m[userID]
	if !ok {
		s = &session{}
		sm.m[userID] = s
	}
	return s
}
