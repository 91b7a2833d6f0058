package conversation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bazarko/go-supplier-bot/internal/limits"
	"github.com/bazarko/go-supplier-bot/internal/retry"
)

func (f *fakeEnhancer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// driveToQuantity registers user 1, uploads one photo and walks through
// recognition and location selection, leaving the session awaiting the
// quantity reply. Returns the chosen location id.
func driveToQuantity(t *testing.T, fx *engineFixture) string {
	t.Helper()
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(128))
	resp := fx.send(t, 1, button(btnDone))
	if resp.Text != msgRecognizing {
		t.Fatalf("done response = %q, want %q", resp.Text, msgRecognizing)
	}

	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Mug") {
		t.Fatalf("recognition summary = %q, want product name", note.Text)
	}
	if got := fx.state(1); got != StateAwaitingPhotoConfirmation {
		t.Fatalf("state = %q, want %q", got, StateAwaitingPhotoConfirmation)
	}

	fx.send(t, 1, button(btnConfirm))
	sup := fx.store.byChat[1]
	locID := fx.store.locations[sup.ID][0].ID
	resp = fx.send(t, 1, button(locPrefix+locID))
	if resp.Text != msgAskQuantity {
		t.Fatalf("location response = %q, want %q", resp.Text, msgAskQuantity)
	}
	return locID
}

func TestUpload_HappyPath(t *testing.T) {
	fx := newEngine(t, Options{})
	locID := driveToQuantity(t, fx)

	resp := fx.send(t, 1, text("10"))
	if resp.Text != msgSaving {
		t.Fatalf("quantity response = %q, want %q", resp.Text, msgSaving)
	}
	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Saved 1 product") {
		t.Fatalf("save notification = %q", note.Text)
	}

	if got := fx.state(1); got != StateRegistered {
		t.Errorf("state = %q, want %q", got, StateRegistered)
	}
	if n := fx.store.productCount(); n != 1 {
		t.Fatalf("products = %d, want 1", n)
	}
	var found bool
	for _, p := range fx.store.products {
		found = true
		if p.Name != "Mug" {
			t.Errorf("name = %q, want %q", p.Name, "Mug")
		}
		if p.Quantity != 10 {
			t.Errorf("quantity = %d, want 10", p.Quantity)
		}
		if p.LocationID != locID {
			t.Errorf("location = %q, want %q", p.LocationID, locID)
		}
		if len(p.ImageURLs) != 1 || !strings.HasPrefix(p.ImageURLs[0], "https://cdn.example/img/") {
			t.Errorf("image urls = %v", p.ImageURLs)
		}
	}
	if !found {
		t.Fatal("saved product not found")
	}
	if got := fx.limiter.count(limits.FeatureRecognition); got != 1 {
		t.Errorf("recognition count = %d, want exactly 1 for the batch", got)
	}
}

func TestUpload_PhotoLimits(t *testing.T) {
	fx := newEngine(t, Options{MaxPhotosPerBatch: 2, MaxPhotoBytes: 1 << 20})
	registerSupplier(t, fx)
	fx.send(t, 1, command(CmdUpload))

	resp := fx.send(t, 1, photo(1<<20+1))
	if !strings.Contains(resp.Text, "too large") {
		t.Errorf("oversized photo response = %q", resp.Text)
	}

	fx.send(t, 1, photo(64))
	fx.send(t, 1, photo(64))
	resp = fx.send(t, 1, photo(64))
	if !strings.Contains(resp.Text, "maximum") {
		t.Errorf("batch-full response = %q", resp.Text)
	}

	sess := fx.engine.sessions.get(1)
	sess.mu.Lock()
	staged := len(sess.photos)
	sess.mu.Unlock()
	if staged != 2 {
		t.Errorf("staged photos = %d, want 2", staged)
	}
}

func TestUpload_DoneWithoutPhotos(t *testing.T) {
	fx := newEngine(t, Options{})
	registerSupplier(t, fx)
	fx.send(t, 1, command(CmdUpload))

	resp := fx.send(t, 1, button(btnDone))
	if resp.Text != msgNoPhotosYet {
		t.Errorf("response = %q, want %q", resp.Text, msgNoPhotosYet)
	}
	if got := fx.state(1); got != StateAwaitingPhoto {
		t.Errorf("state = %q, want %q", got, StateAwaitingPhoto)
	}
}

// Quota denial keeps the staged photos, makes no recognition call and
// counts nothing.
func TestUpload_QuotaDenied(t *testing.T) {
	fx := newEngine(t, Options{})
	fx.limiter.deny[limits.FeatureRecognition] = true
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	resp := fx.send(t, 1, button(btnDone))
	if resp.Text != msgQuotaExceeded {
		t.Fatalf("response = %q, want %q", resp.Text, msgQuotaExceeded)
	}
	if got := fx.recognizer.callCount(); got != 0 {
		t.Errorf("recognizer calls = %d, want 0", got)
	}
	if got := fx.objects.calls; got != 0 {
		t.Errorf("object uploads = %d, want 0", got)
	}
	if got := fx.limiter.count(limits.FeatureRecognition); got != 0 {
		t.Errorf("recognition count = %d, want 0", got)
	}
	if got := fx.state(1); got != StateAwaitingPhoto {
		t.Errorf("state = %q, want %q", got, StateAwaitingPhoto)
	}

	// Lifting the denial lets the same batch proceed.
	fx.limiter.mu.Lock()
	fx.limiter.deny[limits.FeatureRecognition] = false
	fx.limiter.mu.Unlock()
	resp = fx.send(t, 1, button(btnDone))
	if resp.Text != msgRecognizing {
		t.Fatalf("retry response = %q, want %q", resp.Text, msgRecognizing)
	}
	fx.notifier.wait(t)
	if got := fx.limiter.count(limits.FeatureRecognition); got != 1 {
		t.Errorf("recognition count = %d, want 1", got)
	}
}

// A cancel issued while recognition is in flight strands the result: the
// session rests, no drafts appear, no notification is delivered.
func TestUpload_CancelStrandsInFlightRecognition(t *testing.T) {
	fx := newEngine(t, Options{})
	release := make(chan struct{})
	fx.recognizer.block = release
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))

	// Busy: ordinary events are deferred.
	resp := fx.send(t, 1, text("hello?"))
	if resp.Text != msgStillWorking {
		t.Errorf("busy response = %q, want %q", resp.Text, msgStillWorking)
	}

	resp = fx.send(t, 1, command(CmdCancel))
	if resp.Text != msgCancelled {
		t.Errorf("cancel response = %q, want %q", resp.Text, msgCancelled)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fx.engine.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := fx.notifier.count(); got != 0 {
		t.Errorf("notifications = %d, want 0 (stale result must be discarded)", got)
	}
	sess := fx.engine.sessions.get(1)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateRegistered {
		t.Errorf("state = %q, want %q", sess.state, StateRegistered)
	}
	if sess.busy {
		t.Error("busy should be cleared by cancel")
	}
	if len(sess.drafts) != 0 || len(sess.photos) != 0 {
		t.Errorf("drafts/photos = %d/%d, want none", len(sess.drafts), len(sess.photos))
	}
}

// A slow transport must not freeze the session: the recognition outcome is
// committed before delivery, so the user's next event is served while the
// notification is still in flight.
func TestUpload_SlowNotifierDoesNotBlockSession(t *testing.T) {
	fx := newEngine(t, Options{})
	registerSupplier(t, fx)

	release := make(chan struct{})
	fx.notifier.mu.Lock()
	fx.notifier.block = release
	fx.notifier.mu.Unlock()

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))

	// Wait until the background run has committed its result; the delivery
	// itself is still parked on the blocked notifier.
	deadline := time.After(5 * time.Second)
	for fx.state(1) != StateAwaitingPhotoConfirmation {
		select {
		case <-deadline:
			t.Fatal("recognition result never committed")
		case <-time.After(time.Millisecond):
		}
	}

	resp := fx.send(t, 1, command(CmdCancel))
	if resp.Text != msgCancelled {
		t.Errorf("cancel response = %q, want %q", resp.Text, msgCancelled)
	}

	close(release)
	fx.notifier.wait(t)
}

// Exhausted transient recognition failures keep the photos so Done retries
// the batch.
func TestUpload_TransientRecognitionFailureKeepsPhotos(t *testing.T) {
	fx := newEngine(t, Options{})
	fx.recognizer.err = retry.Transient(errors.New("recognizer overloaded"))
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))

	note := fx.notifier.wait(t)
	if note.Text != msgRecogRetry {
		t.Fatalf("notification = %q, want %q", note.Text, msgRecogRetry)
	}
	if got := fx.recognizer.callCount(); got != 2 {
		t.Errorf("recognizer calls = %d, want 2 (retried once)", got)
	}

	sess := fx.engine.sessions.get(1)
	sess.mu.Lock()
	photosKept := len(sess.photos)
	state := sess.state
	sess.mu.Unlock()
	if photosKept != 1 {
		t.Errorf("photos = %d, want kept", photosKept)
	}
	if state != StateAwaitingPhoto {
		t.Errorf("state = %q, want %q", state, StateAwaitingPhoto)
	}

	// Second Done after the service recovers.
	fx.recognizer.mu.Lock()
	fx.recognizer.err = nil
	fx.recognizer.mu.Unlock()
	fx.send(t, 1, button(btnDone))
	note = fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Mug") {
		t.Errorf("recovery summary = %q", note.Text)
	}
}

func TestUpload_PermanentRecognitionFailure(t *testing.T) {
	fx := newEngine(t, Options{})
	fx.recognizer.err = errors.New("invalid api key")
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))

	note := fx.notifier.wait(t)
	if note.Text != msgRecogFailed {
		t.Fatalf("notification = %q, want %q", note.Text, msgRecogFailed)
	}
	if got := fx.recognizer.callCount(); got != 1 {
		t.Errorf("recognizer calls = %d, want 1 (no retry on permanent error)", got)
	}
}

func TestUpload_RetakeClearsDraftsAndPhotos(t *testing.T) {
	fx := newEngine(t, Options{})
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))
	fx.notifier.wait(t)

	resp := fx.send(t, 1, button(btnRetake))
	if !strings.Contains(resp.Text, "Send product photos") {
		t.Errorf("retake response = %q", resp.Text)
	}
	sess := fx.engine.sessions.get(1)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateAwaitingPhoto {
		t.Errorf("state = %q, want %q", sess.state, StateAwaitingPhoto)
	}
	if len(sess.photos) != 0 || len(sess.drafts) != 0 {
		t.Errorf("photos/drafts = %d/%d, want cleared", len(sess.photos), len(sess.drafts))
	}
}

// Selecting a location id the supplier does not own resets the flow.
func TestUpload_ForeignLocationResets(t *testing.T) {
	fx := newEngine(t, Options{})
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))
	fx.notifier.wait(t)
	fx.send(t, 1, button(btnConfirm))

	resp := fx.send(t, 1, button(locPrefix+"someone-elses-location"))
	if resp.Text != msgBadLocation {
		t.Errorf("response = %q, want %q", resp.Text, msgBadLocation)
	}
	if got := fx.state(1); got != StateRegistered {
		t.Errorf("state = %q, want %q", got, StateRegistered)
	}
	if n := fx.store.productCount(); n != 0 {
		t.Errorf("products = %d, want 0", n)
	}
}

func TestParseQuantities(t *testing.T) {
	cases := map[string]struct {
		text string
		n    int
		want []int
		ok   bool
	}{
		"explicit":       {"2, 5", 2, []int{2, 5}, true},
		"skip":           {"skip", 3, []int{1, 1, 1}, true},
		"skip russian":   {"Пропустить", 2, []int{1, 1}, true},
		"short pads":     {"4", 3, []int{4, 1, 1}, true},
		"long truncates": {"1,2,3,4", 2, []int{1, 2}, true},
		"zero rejected":  {"0", 1, nil, false},
		"words rejected": {"two", 1, nil, false},
		"negative":       {"-3", 1, nil, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := parseQuantities(tc.text, tc.n)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if tc.ok && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("quantities = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUpload_BadQuantityReprompts(t *testing.T) {
	fx := newEngine(t, Options{})
	driveToQuantity(t, fx)

	resp := fx.send(t, 1, text("lots"))
	if resp.Text != msgBadQuantity {
		t.Errorf("response = %q, want %q", resp.Text, msgBadQuantity)
	}
	if got := fx.state(1); got != StateAwaitingQuantity {
		t.Errorf("state = %q, want unchanged %q", got, StateAwaitingQuantity)
	}
}

// A failed save keeps the recognized drafts; resending the quantities
// retries with the same token so nothing duplicates.
func TestUpload_SaveFailureRetainsDrafts(t *testing.T) {
	fx := newEngine(t, Options{})
	driveToQuantity(t, fx)
	fx.store.failProduct = retry.Transient(errors.New("store down"))

	fx.send(t, 1, text("2"))
	note := fx.notifier.wait(t)
	if note.Text != msgSaveRetry {
		t.Fatalf("notification = %q, want %q", note.Text, msgSaveRetry)
	}

	sess := fx.engine.sessions.get(1)
	sess.mu.Lock()
	if sess.state != StateAwaitingQuantity {
		t.Errorf("state = %q, want %q", sess.state, StateAwaitingQuantity)
	}
	if len(sess.drafts) != 1 {
		t.Fatalf("drafts = %d, want retained", len(sess.drafts))
	}
	firstToken := sess.drafts[0].SaveToken
	sess.mu.Unlock()
	if firstToken == "" {
		t.Fatal("draft save token not assigned")
	}
	if n := fx.store.productCount(); n != 0 {
		t.Fatalf("products = %d, want 0 after failed save", n)
	}

	fx.store.mu.Lock()
	fx.store.failProduct = nil
	fx.store.mu.Unlock()

	fx.send(t, 1, text("2"))
	note = fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Saved 1 product") {
		t.Fatalf("retry notification = %q", note.Text)
	}
	if n := fx.store.productCount(); n != 1 {
		t.Errorf("products = %d, want exactly 1 after retry", n)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateRegistered {
		t.Errorf("state = %q, want %q", sess.state, StateRegistered)
	}
}

func TestUpload_AutoEnhanceRunsAfterSave(t *testing.T) {
	fx := newEngine(t, Options{AutoEnhance: true})
	driveToQuantity(t, fx)

	fx.send(t, 1, text("1"))
	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "enhance") {
		t.Fatalf("save notification = %q, want enhancement notice", note.Text)
	}
	note = fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Enhanced listing is ready") {
		t.Fatalf("enhancement notification = %q", note.Text)
	}

	if got := fx.enhancer.callCount(); got != 1 {
		t.Errorf("enhancer calls = %d, want 1", got)
	}
	if got := fx.limiter.count(limits.FeatureEnhancement); got != 1 {
		t.Errorf("enhancement count = %d, want 1", got)
	}
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	if len(fx.store.enhanced) != 1 {
		t.Fatalf("enhanced products = %d, want 1", len(fx.store.enhanced))
	}
	for _, v := range fx.store.enhanced {
		if v[0] != "https://cdn.example/enh.jpg" || v[1] != "A fine mug" {
			t.Errorf("enhancement = %v", v)
		}
	}
}

// Enhancement quota denial skips enhancement silently; the save itself is
// unaffected.
func TestUpload_EnhancementQuotaDeniedSkips(t *testing.T) {
	fx := newEngine(t, Options{AutoEnhance: true})
	fx.limiter.deny[limits.FeatureEnhancement] = true
	driveToQuantity(t, fx)

	fx.send(t, 1, text("1"))
	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Saved 1 product") {
		t.Fatalf("save notification = %q", note.Text)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fx.engine.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := fx.enhancer.callCount(); got != 0 {
		t.Errorf("enhancer calls = %d, want 0", got)
	}
	if n := fx.store.productCount(); n != 1 {
		t.Errorf("products = %d, want 1 (save must not roll back)", n)
	}
}

// Two drafts in one batch: quantities map positionally.
func TestUpload_MultiPhotoBatch(t *testing.T) {
	fx := newEngine(t, Options{})
	registerSupplier(t, fx)

	fx.send(t, 1, command(CmdUpload))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, photo(64))
	fx.send(t, 1, button(btnDone))
	fx.notifier.wait(t)

	fx.send(t, 1, button(btnConfirm))
	sup := fx.store.byChat[1]
	locID := fx.store.locations[sup.ID][0].ID
	fx.send(t, 1, button(locPrefix+locID))
	fx.send(t, 1, text("3, 7"))
	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Saved 2 product") {
		t.Fatalf("notification = %q", note.Text)
	}

	if got := fx.limiter.count(limits.FeatureRecognition); got != 1 {
		t.Errorf("recognition count = %d, want 1 for the whole batch", got)
	}
	quantities := map[int]bool{}
	fx.store.mu.Lock()
	for _, p := range fx.store.products {
		quantities[p.Quantity] = true
	}
	fx.store.mu.Unlock()
	if !quantities[3] || !quantities[7] {
		t.Errorf("quantities = %v, want 3 and 7", quantities)
	}
}

// The scenario from the product brief end to end.
func TestScenario_IvanRegistersAndUploads(t *testing.T) {
	fx := newEngine(t, Options{RecognitionDailyLimit: 5})

	fx.send(t, 1, command(CmdStart))
	fx.send(t, 1, text("Ivan"))
	fx.send(t, 1, text("Tsentralny"))
	fx.send(t, 1, text("12"))
	fx.send(t, 1, text("+79991234567"))
	fx.send(t, 1, button(btnNo))
	resp := fx.send(t, 1, button(btnDone))
	if !strings.Contains(resp.Text, "complete") {
		t.Fatalf("registration response = %q", resp.Text)
	}

	fx.send(t, 1, button(btnUpload))
	fx.send(t, 1, photo(256))
	fx.send(t, 1, button(btnDone))
	fx.notifier.wait(t)
	fx.send(t, 1, button(btnConfirm))

	sup := fx.store.byChat[1]
	locID := fx.store.locations[sup.ID][0].ID
	fx.send(t, 1, button(locPrefix+locID))
	fx.send(t, 1, text("10"))
	note := fx.notifier.wait(t)
	if !strings.Contains(note.Text, "Saved 1 product") {
		t.Fatalf("save notification = %q", note.Text)
	}

	for _, p := range fx.store.products {
		if p.Name != "Mug" || p.Quantity != 10 || p.SupplierID != sup.ID {
			t.Errorf("product = %+v", p)
		}
	}
	if got := fx.limiter.count(limits.FeatureRecognition); got != 1 {
		t.Errorf("recognition count = %d, want 1", got)
	}
	resp = fx.send(t, 1, command(CmdLimits))
	if !strings.Contains(resp.Text, fmt.Sprintf("%d recognitions", 4)) {
		t.Errorf("limits after upload = %q", resp.Text)
	}
}
