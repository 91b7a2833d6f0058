package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bazarko/go-supplier-bot/internal/store"
)

// phonePattern accepts international-looking numbers: optional +, then 7
// to 15 digits. Separators are stripped before matching.
var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

func normalizePhone(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if !phonePattern.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

// choice normalizes a button payload or free-text answer for the
// yes/no/add/done decision states.
func choice(ev Event) string {
	switch ev.Type {
	case EventButton:
		return strings.ToLower(strings.TrimSpace(ev.Button))
	case EventText:
		return strings.ToLower(strings.TrimSpace(ev.Text))
	default:
		return ""
	}
}

func (e *Engine) handleAwaitingName(sess *session, ev Event) Response {
	if ev.Type != EventText || strings.TrimSpace(ev.Text) == "" {
		return Response{Text: msgAskName}
	}
	sess.contactName = strings.TrimSpace(ev.Text)
	sess.state = StateAwaitingMarket
	return Response{Text: msgAskMarket}
}

func (e *Engine) handleAwaitingMarket(sess *session, ev Event) Response {
	if ev.Type != EventText || strings.TrimSpace(ev.Text) == "" {
		return Response{Text: msgAskMarket}
	}
	sess.cur.MarketName = strings.TrimSpace(ev.Text)
	sess.state = StateAwaitingPavilion
	return Response{Text: msgAskPavilion}
}

func (e *Engine) handleAwaitingPavilion(sess *session, ev Event) Response {
	if ev.Type != EventText || strings.TrimSpace(ev.Text) == "" {
		return Response{Text: msgAskPavilion}
	}
	sess.cur.PavilionNumber = strings.TrimSpace(ev.Text)
	sess.state = StateAwaitingPhone
	return Response{Text: msgAskPhone}
}

func (e *Engine) handleAwaitingPhone(sess *session, ev Event) Response {
	if ev.Type != EventText {
		return Response{Text: msgAskPhone}
	}
	phone, ok := normalizePhone(ev.Text)
	if !ok {
		// ErrInvalidInput case: re-prompt, state unchanged.
		return Response{Text: msgBadPhone}
	}
	sess.cur.Phones = append(sess.cur.Phones, phone)
	sess.state = StateAwaitingMorePhones
	return Response{Text: msgMorePhones, Buttons: yesNoButtons()}
}

func (e *Engine) handleAwaitingMorePhones(ctx context.Context, userID int64, sess *session, ev Event) Response {
	switch choice(ev) {
	case btnYes:
		sess.state = StateAwaitingPhone
		return Response{Text: msgAskPhone}
	case btnNo:
		// A registered supplier reaches this flow through /addlocation;
		// the single drafted location is committed on its own.
		if sess.supplierID != "" {
			return e.commitLocation(ctx, userID, sess)
		}
		sess.state = StateAwaitingAddLocationDecision
		return Response{Text: msgAddLocation, Buttons: addDoneButtons()}
	default:
		return Response{Text: msgMorePhones, Buttons: yesNoButtons()}
	}
}

// handleAddLocationDecision either loops back for another location or
// commits the supplier with every draft location in one transaction.
func (e *Engine) handleAddLocationDecision(ctx context.Context, userID int64, sess *session, ev Event) Response {
	switch choice(ev) {
	case btnAdd:
		sess.locations = append(sess.locations, sess.cur)
		sess.cur = draftLocation{}
		sess.state = StateAwaitingMarket
		return Response{Text: msgAskMarket}
	case btnDone:
		return e.commitRegistration(ctx, userID, sess)
	default:
		return Response{Text: msgAddLocation, Buttons: addDoneButtons()}
	}
}

// commitRegistration persists the supplier and all draft locations. The
// commit token survives transient failures so a user-triggered retry
// replays instead of duplicating; the draft stays intact until the commit
// lands.
func (e *Engine) commitRegistration(ctx context.Context, userID int64, sess *session) Response {
	if sess.regToken == "" {
		sess.regToken = e.newToken()
	}

	all := append(append([]draftLocation{}, sess.locations...), sess.cur)
	drafts := make([]store.LocationDraft, 0, len(all))
	for _, l := range all {
		drafts = append(drafts, store.LocationDraft{
			MarketName:     l.MarketName,
			PavilionNumber: l.PavilionNumber,
			Phones:         l.Phones,
		})
	}

	sup, err := e.deps.Store.AppendSupplier(ctx, sess.regToken, userID, sess.displayName, sess.contactName, drafts)
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("registration commit")
		// Retriable: the draft is preserved and the decision state
		// re-entered so the user can press Finish again.
		return Response{Text: msgCommitRetry, Buttons: addDoneButtons()}
	}

	sess.supplierID = sup.ID
	sess.clearDrafts()
	sess.state = StateRegistered
	e.invalidateSupplier(userID)
	e.deps.Log.Info().Int64("user_id", userID).Str("supplier_id", sup.ID).
		Int("locations", len(drafts)).Msg("supplier registered")
	return Response{Text: msgRegistered, Buttons: actionButtons()}
}

// commitLocation persists one additional location for a registered
// supplier, with the same token discipline as commitRegistration: the
// draft and token survive a transient failure so the retry replays.
func (e *Engine) commitLocation(ctx context.Context, userID int64, sess *session) Response {
	if sess.regToken == "" {
		sess.regToken = e.newToken()
	}

	loc, err := e.deps.Store.AppendLocation(ctx, sess.regToken, sess.supplierID, store.LocationDraft{
		MarketName:     sess.cur.MarketName,
		PavilionNumber: sess.cur.PavilionNumber,
		Phones:         sess.cur.Phones,
	})
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("location commit")
		return Response{Text: msgLocationRetry, Buttons: yesNoButtons()}
	}

	sess.clearDrafts()
	sess.state = StateRegistered
	e.invalidateSupplier(userID)
	e.deps.Log.Info().Int64("user_id", userID).Str("supplier_id", sess.supplierID).
		Str("location_id", loc.ID).Msg("location added")
	return Response{Text: fmt.Sprintf(msgLocationAdded, loc.MarketName), Buttons: actionButtons()}
}
