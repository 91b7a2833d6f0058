// Package conversation implements the per-user finite state machine that
// drives supplier registration and product upload. The engine maps
// (current state, incoming event) to side effects, a state transition, and
// an outbound response, coordinating the Data Store, object store, usage
// limiter, read cache, and AI services. One logical worker per user:
// events for the same user are serialized, different users run in
// parallel, and background completions are discarded when the user's
// state has moved on (generation stamp).
package conversation

// State tags a user's position in the combined registration/upload flow.
type State string

// Combined state space. StateRegistered is the resting state between
// flows, not a true terminal: the machine re-enters sub-flows from it.
const (
	// StateNone means no conversation record exists yet; the first event
	// resolves the user against the Data Store.
	StateNone State = ""

	// Registration flow.
	StateAwaitingName                State = "AWAITING_NAME"
	StateAwaitingMarket              State = "AWAITING_MARKET"
	StateAwaitingPavilion            State = "AWAITING_PAVILION"
	StateAwaitingPhone               State = "AWAITING_PHONE"
	StateAwaitingMorePhones          State = "AWAITING_MORE_PHONES"
	StateAwaitingAddLocationDecision State = "AWAITING_ADD_LOCATION_DECISION"

	// Resting state.
	StateRegistered State = "REGISTERED"

	// Upload flow.
	StateAwaitingPhoto             State = "AWAITING_PHOTO"
	StateAwaitingPhotoConfirmation State = "AWAITING_PHOTO_CONFIRMATION"
	StateAwaitingLocationSelection State = "AWAITING_LOCATION_SELECTION"
	StateAwaitingQuantity          State = "AWAITING_QUANTITY"
)

// EventType discriminates inbound user events.
type EventType string

const (
	EventText    EventType = "text"
	EventPhoto   EventType = "photo"
	EventButton  EventType = "button"
	EventCommand EventType = "command"
)

// Photo carries raw uploaded image bytes.
type Photo struct {
	Data        []byte
	ContentType string
}

// Event is one inbound user action, routed to the handler for the user's
// current state.
type Event struct {
	Type EventType

	// From is the sender's messenger username, when known. It is recorded
	// on the session and persisted as the supplier's display name.
	From string
	// Text is set for EventText.
	Text string
	// Command is the normalized slash command ("/start") for EventCommand.
	Command string
	// Button is the callback data of the pressed button for EventButton.
	Button string
	// Photo is set for EventPhoto.
	Photo *Photo
}

// Button is one inline-keyboard option offered with a response.
type Button struct {
	Label string
	Data  string
}

// Response is the outbound message produced for an event or a background
// completion. Buttons are rendered as inline keyboard rows.
type Response struct {
	Text    string
	Buttons [][]Button
}

// Commands understood in every state or from the resting state.
const (
	CmdStart       = "/start"
	CmdCancel      = "/cancel"
	CmdUpload      = "/upload"
	CmdAddLocation = "/addlocation"
	CmdProfile     = "/profile"
	CmdProducts    = "/products"
	CmdLimits      = "/limits"
)

// Button callback payloads.
const (
	btnYes     = "yes"
	btnNo      = "no"
	btnAdd     = "add"
	btnDone    = "done"
	btnConfirm = "confirm"
	btnRetake  = "retake"
	btnUpload  = "upload"
	btnAddLoc  = "add_location"

	// locPrefix prefixes a location id in selection buttons.
	locPrefix = "loc:"
)
