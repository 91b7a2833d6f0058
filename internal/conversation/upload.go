package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bazarko/go-supplier-bot/internal/ai"
	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/limits"
	"github.com/bazarko/go-supplier-bot/internal/retry"
	"github.com/bazarko/go-supplier-bot/internal/search"
)

// handleRegistered serves the resting state: commands and action buttons
// that start sub-flows or answer read-only queries.
func (e *Engine) handleRegistered(ctx context.Context, userID int64, sess *session, ev Event) Response {
	if ev.Type == EventButton && ev.Button == btnUpload {
		return e.enterUpload(sess)
	}
	if ev.Type == EventButton && ev.Button == btnAddLoc {
		return e.enterAddLocation(sess)
	}
	if ev.Type != EventCommand {
		return Response{Text: msgWelcomeBack, Buttons: actionButtons()}
	}

	switch ev.Command {
	case CmdStart:
		return Response{Text: msgWelcomeBack, Buttons: actionButtons()}
	case CmdUpload:
		return e.enterUpload(sess)
	case CmdAddLocation:
		return e.enterAddLocation(sess)
	case CmdProfile:
		return e.renderProfile(ctx, userID)
	case CmdProducts:
		return e.renderProducts(ctx, userID, sess)
	case CmdLimits:
		return e.renderLimits(ctx, userID)
	default:
		return Response{Text: msgUnknownCommand}
	}
}

func (e *Engine) enterUpload(sess *session) Response {
	sess.photos = nil
	sess.drafts = nil
	sess.locationID = ""
	sess.batchToken = ""
	sess.state = StateAwaitingPhoto
	return Response{Text: fmt.Sprintf(msgAskPhoto, e.opts.MaxPhotosPerBatch)}
}

// enterAddLocation re-enters the location questions for a registered
// supplier; the drafted location commits through the Data Store on its
// own once the phone list is closed.
func (e *Engine) enterAddLocation(sess *session) Response {
	sess.cur = draftLocation{}
	sess.regToken = ""
	sess.state = StateAwaitingMarket
	return Response{Text: msgAskMarket}
}

func (e *Engine) renderProfile(ctx context.Context, userID int64) Response {
	prof, err := e.profile(ctx, userID)
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("profile read")
		return Response{Text: msgProfileErr}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Contact: %s\n", prof.Supplier.ContactName)
	for _, l := range prof.Locations {
		fmt.Fprintf(&b, "• %s, pavilion %s (%s)\n", l.MarketName, l.PavilionNumber, strings.Join(l.Phones, ", "))
	}
	fmt.Fprintf(&b, "Products: %d", prof.ProductCount)
	return Response{Text: b.String(), Buttons: actionButtons()}
}

func (e *Engine) renderProducts(ctx context.Context, userID int64, sess *session) Response {
	products, err := e.deps.Store.RecentProducts(ctx, sess.supplierID, 10)
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("products read")
		return Response{Text: msgProfileErr}
	}
	if len(products) == 0 {
		return Response{Text: "You have no products yet.", Buttons: actionButtons()}
	}
	var b strings.Builder
	b.WriteString("Your recent products:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "• %s ×%d\n", p.Name, p.Quantity)
	}
	return Response{Text: strings.TrimRight(b.String(), "\n"), Buttons: actionButtons()}
}

func (e *Engine) renderLimits(ctx context.Context, userID int64) Response {
	rec, err := e.deps.Limiter.Remaining(ctx, userID, limits.FeatureRecognition, e.opts.RecognitionDailyLimit)
	if err != nil {
		return Response{Text: msgProfileErr}
	}
	enh, err := e.deps.Limiter.Remaining(ctx, userID, limits.FeatureEnhancement, e.opts.EnhancementDailyLimit)
	if err != nil {
		return Response{Text: msgProfileErr}
	}
	return Response{Text: fmt.Sprintf("Remaining today: %d recognitions, %d enhancements.", rec, enh)}
}

// handleAwaitingPhoto stages photos and, on Done, checks the recognition
// quota once for the whole batch before handing it to the background task.
func (e *Engine) handleAwaitingPhoto(ctx context.Context, userID int64, sess *session, ev Event) Response {
	switch {
	case ev.Type == EventPhoto && ev.Photo != nil:
		if int64(len(ev.Photo.Data)) > e.opts.MaxPhotoBytes {
			return Response{Text: fmt.Sprintf(msgPhotoTooBig, e.opts.MaxPhotoBytes>>20)}
		}
		if len(sess.photos) >= e.opts.MaxPhotosPerBatch {
			return Response{Text: fmt.Sprintf(msgBatchFull, e.opts.MaxPhotosPerBatch)}
		}
		sess.photos = append(sess.photos, *ev.Photo)
		return Response{Text: fmt.Sprintf(msgPhotoStaged, len(sess.photos)), Buttons: photoDoneButtons()}

	case choice(ev) == btnDone:
		if len(sess.photos) == 0 {
			return Response{Text: msgNoPhotosYet}
		}
		return e.startRecognition(ctx, userID, sess)

	default:
		return Response{Text: fmt.Sprintf(msgAskPhoto, e.opts.MaxPhotosPerBatch), Buttons: photoDoneButtons()}
	}
}

// startRecognition spends one recognition quota unit for the batch and
// launches the background upload+recognize pipeline. Denial keeps the
// staged photos and the state; no recognition call is made and nothing is
// counted.
func (e *Engine) startRecognition(ctx context.Context, userID int64, sess *session) Response {
	if sess.batchToken == "" {
		sess.batchToken = e.newToken()
	}
	allowed, err := e.deps.Limiter.CheckAndIncrement(ctx, sess.batchToken, userID, limits.FeatureRecognition, e.opts.RecognitionDailyLimit)
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("recognition quota check")
		// Token kept: the retried check replays instead of double counting.
		return Response{Text: msgRecogRetry, Buttons: photoDoneButtons()}
	}
	if !allowed {
		recognitionRuns.WithLabelValues(outcomeDenied).Inc()
		sess.batchToken = ""
		return Response{Text: msgQuotaExceeded}
	}
	sess.batchToken = ""
	sess.busy = true

	photos := append([]Photo(nil), sess.photos...)
	gen := sess.gen
	e.spawn(func(ctx context.Context) {
		e.runRecognition(ctx, userID, sess, gen, photos)
	})
	return Response{Text: msgRecognizing}
}

// runRecognition uploads each staged photo to the object store and runs
// recognition on it, both through the retry wrapper. The session is only
// touched after re-acquiring it and proving the generation still matches;
// a cancel issued mid-flight strands the result.
func (e *Engine) runRecognition(ctx context.Context, userID int64, sess *session, gen uint64, photos []Photo) {
	var drafts []draftProduct
	var failure error
	for _, ph := range photos {
		url, err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) (string, error) {
			return e.deps.Objects.Upload(ctx, ph.Data, ph.ContentType)
		})
		if err != nil {
			failure = err
			break
		}
		attrs, err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) (ai.Attributes, error) {
			return e.deps.Recognizer.Recognize(ctx, url)
		})
		if err != nil {
			failure = err
			break
		}
		attrs.Name = search.NormalizeName(attrs.Name)
		drafts = append(drafts, draftProduct{Attrs: attrs, ImageURL: url})
	}

	// Notify is never called under sess.mu: the transport may block, and the
	// user must stay able to send /cancel meanwhile.
	sess.mu.Lock()
	if sess.gen != gen {
		sess.mu.Unlock()
		recognitionRuns.WithLabelValues(outcomeStale).Inc()
		e.deps.Log.Info().Int64("user_id", userID).Msg("stale recognition result discarded")
		return
	}
	sess.busy = false

	if failure != nil {
		kind := classify(failure)
		sess.mu.Unlock()
		e.deps.Log.Error().Err(failure).Int64("user_id", userID).Msg("recognition batch failed")
		if errors.Is(kind, ErrTransientService) {
			recognitionRuns.WithLabelValues(outcomeTransient).Inc()
			e.deps.Notifier.Notify(ctx, userID, Response{Text: msgRecogRetry, Buttons: photoDoneButtons()})
		} else {
			recognitionRuns.WithLabelValues(outcomePermanent).Inc()
			e.deps.Notifier.Notify(ctx, userID, Response{Text: msgRecogFailed, Buttons: photoDoneButtons()})
		}
		return
	}

	recognitionRuns.WithLabelValues(outcomeOK).Inc()
	sess.drafts = drafts
	sess.state = StateAwaitingPhotoConfirmation
	sess.mu.Unlock()
	e.deps.Notifier.Notify(ctx, userID, Response{Text: summarizeDrafts(drafts), Buttons: confirmRetakeButtons()})
}

// handlePhotoConfirmation accepts or rejects the recognized attributes.
func (e *Engine) handlePhotoConfirmation(ctx context.Context, userID int64, sess *session, ev Event) Response {
	switch choice(ev) {
	case btnConfirm:
		prof, err := e.profile(ctx, userID)
		if err != nil {
			e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("location fetch")
			return Response{Text: msgProfileErr, Buttons: confirmRetakeButtons()}
		}
		if len(prof.Locations) == 0 {
			// ConsistencyViolation: a registered supplier must own at
			// least one location.
			e.deps.Log.Error().Int64("user_id", userID).Msg("supplier has no locations")
			sess.clearDrafts()
			sess.state = StateRegistered
			return Response{Text: msgNoLocations, Buttons: actionButtons()}
		}
		sess.state = StateAwaitingLocationSelection
		return Response{Text: msgPickLocation, Buttons: locationButtons(prof.Locations)}

	case btnRetake:
		sess.drafts = nil
		sess.photos = nil
		sess.state = StateAwaitingPhoto
		return Response{Text: fmt.Sprintf(msgAskPhoto, e.opts.MaxPhotosPerBatch)}

	default:
		return Response{Text: summarizeDrafts(sess.drafts), Buttons: confirmRetakeButtons()}
	}
}

// handleLocationSelection binds the recognized drafts to one of the
// supplier's own locations.
func (e *Engine) handleLocationSelection(ctx context.Context, userID int64, sess *session, ev Event) Response {
	if ev.Type != EventButton || !strings.HasPrefix(ev.Button, locPrefix) {
		prof, err := e.profile(ctx, userID)
		if err != nil {
			return Response{Text: msgProfileErr}
		}
		return Response{Text: msgPickLocation, Buttons: locationButtons(prof.Locations)}
	}

	id := strings.TrimPrefix(ev.Button, locPrefix)
	prof, err := e.profile(ctx, userID)
	if err != nil {
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Msg("location fetch")
		return Response{Text: msgProfileErr}
	}
	owned := false
	for _, l := range prof.Locations {
		if l.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		// ConsistencyViolation: reset the conversation.
		e.deps.Log.Error().Int64("user_id", userID).Str("location_id", id).Msg("location not owned")
		sess.clearDrafts()
		sess.state = StateRegistered
		return Response{Text: msgBadLocation, Buttons: actionButtons()}
	}

	sess.locationID = id
	sess.state = StateAwaitingQuantity
	return Response{Text: msgAskQuantity}
}

// parseQuantities interprets the quantity reply: comma-separated positive
// integers, one per draft (short lists pad with 1, long lists truncate),
// or a skip word meaning 1 each.
func parseQuantities(text string, n int) ([]int, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	if t == "skip" || t == "пропустить" {
		return out, true
	}
	parts := strings.Split(t, ",")
	if len(parts) > n {
		parts = parts[:n]
	}
	for i, p := range parts {
		q, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || q < 1 {
			return nil, false
		}
		out[i] = q
	}
	return out, true
}

// handleQuantity finalizes the batch: assigns quantities and save tokens,
// then persists in the background.
func (e *Engine) handleQuantity(userID int64, sess *session, ev Event) Response {
	if ev.Type != EventText {
		return Response{Text: msgAskQuantity}
	}
	qs, ok := parseQuantities(ev.Text, len(sess.drafts))
	if !ok {
		return Response{Text: msgBadQuantity}
	}
	for i := range sess.drafts {
		sess.drafts[i].Quantity = qs[i]
		if sess.drafts[i].SaveToken == "" {
			sess.drafts[i].SaveToken = e.newToken()
		}
	}

	sess.busy = true
	gen := sess.gen
	drafts := append([]draftProduct(nil), sess.drafts...)
	supplierID := sess.supplierID
	locationID := sess.locationID
	e.spawn(func(ctx context.Context) {
		e.runSave(ctx, userID, sess, gen, supplierID, locationID, drafts)
	})
	return Response{Text: msgSaving}
}

// runSave persists each draft product with its stable save token. A
// mid-batch failure keeps the drafts (tokens included) so the user can
// retry; already-persisted products replay instead of duplicating.
func (e *Engine) runSave(ctx context.Context, userID int64, sess *session, gen uint64, supplierID, locationID string, drafts []draftProduct) {
	var saved []*domain.Product
	var failure error
	for _, d := range drafts {
		p := &domain.Product{
			SupplierID:       supplierID,
			LocationID:       locationID,
			Name:             d.Attrs.Name,
			Description:      d.Attrs.Description,
			Material:         d.Attrs.Material,
			Dimensions:       d.Attrs.Dimensions,
			ProductionOrigin: d.Attrs.ProductionOrigin,
			Packaging:        d.Attrs.Packaging,
			Quantity:         d.Quantity,
			ImageURLs:        []string{d.ImageURL},
		}
		created, err := e.deps.Store.AppendProduct(ctx, d.SaveToken, p)
		if err != nil {
			failure = err
			break
		}
		saved = append(saved, created)
	}

	sess.mu.Lock()
	if sess.gen != gen {
		sess.mu.Unlock()
		e.deps.Log.Info().Int64("user_id", userID).Msg("stale save result discarded")
		return
	}
	sess.busy = false

	if failure != nil {
		kind := classify(failure)
		e.deps.Log.Error().Err(failure).Int64("user_id", userID).Msg("product save failed")
		if errors.Is(kind, ErrConsistency) {
			sess.clearDrafts()
			sess.state = StateRegistered
			sess.mu.Unlock()
			e.deps.Notifier.Notify(ctx, userID, Response{Text: msgBadLocation, Buttons: actionButtons()})
			return
		}
		// Recognition already succeeded; the drafts must not be lost.
		// Stay in the quantity state with everything intact.
		sess.state = StateAwaitingQuantity
		sess.mu.Unlock()
		e.deps.Notifier.Notify(ctx, userID, Response{Text: msgSaveRetry})
		return
	}

	sess.photos = nil
	sess.drafts = nil
	sess.locationID = ""
	sess.state = StateRegistered
	sess.mu.Unlock()

	e.invalidateSupplier(userID)
	e.deps.Log.Info().Int64("user_id", userID).Int("products", len(saved)).Msg("products saved")

	text := fmt.Sprintf(msgSavedPlain, len(saved))
	if e.opts.AutoEnhance {
		text = fmt.Sprintf(msgSaved, len(saved))
	}
	e.deps.Notifier.Notify(ctx, userID, Response{Text: text, Buttons: actionButtons()})

	// Fire-and-forget enhancement: never blocks the success reply, never
	// rolls back the saved products.
	if e.opts.AutoEnhance {
		for _, p := range saved {
			product := *p
			e.spawn(func(ctx context.Context) {
				e.runEnhancement(ctx, userID, product)
			})
		}
	}
}

// runEnhancement improves one saved product, gated by the enhancement
// quota. Failures only skip the enhancement fields.
func (e *Engine) runEnhancement(ctx context.Context, userID int64, p domain.Product) {
	allowed, err := e.deps.Limiter.CheckAndIncrement(ctx, e.newToken(), userID, limits.FeatureEnhancement, e.opts.EnhancementDailyLimit)
	if err != nil {
		enhancementRuns.WithLabelValues(outcomeTransient).Inc()
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Str("product_id", p.ID).Msg("enhancement quota check")
		return
	}
	if !allowed {
		enhancementRuns.WithLabelValues(outcomeDenied).Inc()
		e.deps.Log.Info().Int64("user_id", userID).Str("product_id", p.ID).Msg("enhancement quota exhausted")
		return
	}

	enh, err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) (ai.Enhancement, error) {
		return e.deps.Enhancer.Enhance(ctx, p)
	})
	if err != nil {
		if retry.IsExhausted(err) {
			enhancementRuns.WithLabelValues(outcomeTransient).Inc()
		} else {
			enhancementRuns.WithLabelValues(outcomePermanent).Inc()
		}
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Str("product_id", p.ID).Msg("enhancement failed")
		return
	}

	if err := e.deps.Store.UpdateProductEnhancement(ctx, p.ID, enh.ImageURL, enh.Description); err != nil {
		enhancementRuns.WithLabelValues(outcomeTransient).Inc()
		e.deps.Log.Error().Err(err).Int64("user_id", userID).Str("product_id", p.ID).Msg("enhancement store")
		return
	}
	enhancementRuns.WithLabelValues(outcomeOK).Inc()
	e.invalidateSupplier(userID)
	e.deps.Notifier.Notify(ctx, userID, Response{
		Text: fmt.Sprintf("Enhanced listing is ready for %s.", p.Name),
	})
}
