package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus marks turns that track an asynchronous verification.
// The zero value means the turn carries no status.
type MessageStatus string

const (
	StatusNone    MessageStatus = ""
	StatusLoading MessageStatus = "loading"
	StatusSuccess MessageStatus = "success"
	StatusError   MessageStatus = "error"
)

// Message is one conversational turn.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Image     *ImageInfo
	Status    MessageStatus
	CreatedAt time.Time
}

// Evidence is an image the verifier accepted as proof of delivery for a docket.
type Evidence struct {
	Image      Image
	DocketID   string
	Verdict    string
	AcceptedAt time.Time
}
