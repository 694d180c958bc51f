package usecase

import (
	"fmt"
	"strings"

	"pod-assistant/internal/domain"
)

func buildVerificationMessages(ref domain.DocketRef, img domain.Image) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildVerificationPolicy()},
		{
			Role:    "user",
			Content: buildDocketReference(ref),
			Images:  []domain.Image{img},
		},
	}
}

func buildVerificationPolicy() string {
	return strings.Join([]string{
		"Role:",
		"You check photos submitted as proof of delivery for a logistics operator.",
		"",
		"Task:",
		"Compare the attached photo with the docket reference in this request.",
		"",
		"Checks:",
		"1) Is the photo a proof of delivery document or a delivered parcel?",
		"2) Does any visible docket number match the reference docket id?",
		"3) Does any visible recipient name or address match the reference?",
		"4) Is a signature or stamp present?",
		"",
		"Output Contract:",
		"Answer each check on its own line, then a final verdict line.",
		"If the photo is an acceptable proof of delivery, the verdict must contain exactly: POD is good",
		"Otherwise the verdict must start with: POD is not acceptable, followed by the reason.",
	}, "\n")
}

func buildDocketReference(ref domain.DocketRef) string {
	return fmt.Sprintf(
		"Docket Reference:\nDocket ID: %s\nCustomer: %s\nAddress: %s",
		normalizePromptInput(ref.ID),
		normalizePromptInput(ref.CustomerName),
		normalizePromptInput(ref.Address),
	)
}

func buildAssistantMessages(pinnedPrompt, utterance string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: "system", Content: buildAssistantPolicy()},
	}
	if pinned := strings.TrimSpace(pinnedPrompt); pinned != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: pinned})
	}
	return append(messages, domain.ChatMessage{Role: "user", Content: utterance})
}

func buildAssistantPolicy() string {
	return strings.Join([]string{
		"Role:",
		"You are the assistant inside a delivery operations tool.",
		"",
		"Behavior Rules:",
		"1) Answer only the current user message. You have no memory of earlier turns.",
		"2) Keep responses short and professional.",
		"3) You cannot look up or change dockets yourself. To look one up the user types its id, for example DKT-1001.",
		"4) To mark a docket delivered the user uploads a proof of delivery photo and then asks to update the docket.",
		"5) Never claim that a docket was updated or verified.",
	}, "\n")
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
