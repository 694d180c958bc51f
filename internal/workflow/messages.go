package workflow

import (
	"fmt"
	"strings"

	"pod-assistant/internal/domain"
)

// AcceptanceMarker must appear in a verifier verdict, case-insensitively, for
// the image to count as evidence.
const AcceptanceMarker = "pod is good"

// Accepted reports whether a verifier verdict accepts the image.
func Accepted(verdict string) bool {
	return strings.Contains(strings.ToLower(verdict), AcceptanceMarker)
}

const (
	msgProvideDocket       = "Please provide a docket number first (for example DKT-1001)."
	msgSearchBeforeUpload  = "Please search for a docket before uploading a proof of delivery."
	msgVerificationRunning = "A proof of delivery is already being verified. Please wait for the result before uploading another photo."
	msgVerifierApology     = "Sorry, I couldn't analyze that image. Please try again or upload a clearer photo."
	msgAssistantDegraded   = "I'm having trouble connecting right now. Please try again in a moment."
	msgSessionReset        = "Conversation reset. Enter a docket number to start again."
	msgDefaultUpload       = "Uploaded a proof of delivery photo."
)

func docketFoundMessage(d domain.Docket) string {
	verified := "not verified"
	if d.PODVerified {
		verified = "verified"
	}
	return fmt.Sprintf(
		"Found docket %s for %s at %s. Status: %s (POD %s). Upload a photo of the proof of delivery to verify it.",
		d.ID, d.CustomerName, d.Address, d.Status, verified,
	)
}

func docketNotFoundMessage(id string, sampleIDs []string) string {
	if len(sampleIDs) == 0 {
		return fmt.Sprintf("I couldn't find docket %s. Please check the number and try again.", id)
	}
	return fmt.Sprintf("I couldn't find docket %s. Try one of the sample dockets: %s.", id, strings.Join(sampleIDs, ", "))
}

func noEvidenceMessage(docketID string) string {
	return fmt.Sprintf("There is no verified POD for %s yet. Please upload a proof of delivery photo first.", docketID)
}

func commitSucceededMessage(docketID string) string {
	return fmt.Sprintf("Docket %s has been updated to %s with a verified POD.", docketID, domain.DocketDelivered)
}

func commitFailedMessage(docketID string) string {
	return fmt.Sprintf("Failed to update docket %s. Please try again.", docketID)
}

func analyzingMessage(docketID string) string {
	return fmt.Sprintf("Analyzing proof of delivery for %s...", docketID)
}
