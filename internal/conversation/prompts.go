package conversation

import (
	"fmt"
	"strings"

	"github.com/bazarko/go-supplier-bot/internal/ai"
	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// User-facing texts. Deliberately free of internal identifiers and error
// detail; failures carry an actionable suggestion instead.
const (
	msgWelcomeNew = "Welcome! Let's register you as a supplier. What is your contact name?"

	msgAskName     = "Please send your contact name as a text message."
	msgAskMarket   = "Which market do you trade at?"
	msgAskPavilion = "What is your pavilion number?"
	msgAskPhone    = "Please send a contact phone number (digits, may start with +)."
	msgBadPhone    = "That doesn't look like a phone number. Please send digits only, optionally starting with +."
	msgMorePhones  = "Add another phone number for this location?"
	msgAddLocation = "Add another sales location, or finish registration?"

	msgRegistered     = "Registration complete! You can now upload product photos."
	msgCommitRetry    = "We couldn't save your registration just now. Please try again in a moment."
	msgLocationAdded  = "Added %s to your locations."
	msgLocationRetry  = "We couldn't save that location just now. Press No to try again."
	msgWelcomeBack    = "Welcome back! What would you like to do?"
	msgStillWorking   = "Still processing your previous request, one moment..."
	msgCancelled      = "Cancelled. Your drafts were discarded."
	msgCancelledToReg = "Registration cancelled. Send your contact name whenever you're ready to register."

	msgAskPhoto      = "Send product photos (up to %d). Press Done when finished."
	msgPhotoStaged   = "Got it, %d photo(s) staged. Send more or press Done."
	msgPhotoTooBig   = "That photo is too large. Please send a photo under %d MB."
	msgBatchFull     = "You already staged the maximum of %d photos. Press Done to continue."
	msgNoPhotosYet   = "No photos staged yet. Please send at least one photo first."
	msgQuotaExceeded = "You've reached today's recognition limit. Please try again tomorrow."
	msgRecognizing   = "Processing your photos, this can take a little while..."
	msgRecogRetry    = "The recognition service is busy right now. Your photos are kept; press Done to try again."
	msgRecogFailed   = "We couldn't recognize these photos. Your photos are kept; press Done to retry or Cancel to stop."
	msgConfirm       = "Does this look right?"
	msgPickLocation  = "Which location should these products be assigned to?"
	msgNoLocations   = "Something went wrong with your locations. Please contact support; the upload was cancelled."
	msgBadLocation   = "That location isn't available. The upload was cancelled; please start again."
	msgAskQuantity   = "Send quantities as comma-separated numbers (one per product), or \"skip\" for 1 each."
	msgBadQuantity   = "Please send positive whole numbers separated by commas, or \"skip\"."
	msgSaving        = "Saving your products..."
	msgSaveRetry     = "We couldn't save your products just now. Send the quantities again to retry."
	msgSaved         = "Saved %d product(s). We'll enhance their descriptions in the background."
	msgSavedPlain    = "Saved %d product(s)."

	msgUnknownCommand = "I didn't understand that. Available commands: /upload, /addlocation, /profile, /products, /limits, /cancel."
	msgProfileErr     = "Couldn't load your profile right now. Please try again later."
)

func yesNoButtons() [][]Button {
	return [][]Button{{
		{Label: "Yes", Data: btnYes},
		{Label: "No", Data: btnNo},
	}}
}

func addDoneButtons() [][]Button {
	return [][]Button{{
		{Label: "Add location", Data: btnAdd},
		{Label: "Finish", Data: btnDone},
	}}
}

func photoDoneButtons() [][]Button {
	return [][]Button{{
		{Label: "Done", Data: btnDone},
	}}
}

func confirmRetakeButtons() [][]Button {
	return [][]Button{{
		{Label: "Confirm", Data: btnConfirm},
		{Label: "Retake", Data: btnRetake},
	}}
}

func actionButtons() [][]Button {
	return [][]Button{{
		{Label: "Upload products", Data: btnUpload},
		{Label: "Add location", Data: btnAddLoc},
	}}
}

func locationButtons(locs []domain.Location) [][]Button {
	rows := make([][]Button, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, []Button{{
			Label: fmt.Sprintf("%s, pavilion %s", l.MarketName, l.PavilionNumber),
			Data:  locPrefix + l.ID,
		}})
	}
	return rows
}

// summarizeDrafts renders recognized attributes for the confirmation step.
func summarizeDrafts(drafts []draftProduct) string {
	var b strings.Builder
	b.WriteString("Recognized:\n")
	for i, d := range drafts {
		fmt.Fprintf(&b, "%d. %s", i+1, d.Attrs.Name)
		if d.Attrs.Description != "" {
			fmt.Fprintf(&b, " — %s", d.Attrs.Description)
		}
		if d.Attrs.Material != "" {
			fmt.Fprintf(&b, " (%s)", d.Attrs.Material)
		}
		b.WriteString("\n")
	}
	b.WriteString(msgConfirm)
	return b.String()
}

// summarizeAttrs renders one attribute set for notifications.
func summarizeAttrs(a ai.Attributes) string {
	parts := []string{a.Name}
	if a.Description != "" {
		parts = append(parts, a.Description)
	}
	return strings.Join(parts, " — ")
}
