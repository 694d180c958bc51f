package handler

import (
	"time"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/workflow"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type docketBody struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	Address      string    `json:"address"`
	Status       string    `json:"status"`
	PODVerified  bool      `json:"podVerified"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type imageBody struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type messageBody struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Status    string     `json:"status,omitempty"`
	Image     *imageBody `json:"image,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type sessionResponse struct {
	SessionID       string        `json:"sessionId"`
	Phase           string        `json:"phase"`
	ActiveDocket    *docketBody   `json:"activeDocket,omitempty"`
	EvidencePending bool          `json:"evidencePending"`
	Verifying       bool          `json:"verifying"`
	Actions         []string      `json:"actions"`
	Messages        []messageBody `json:"messages"`
}

type failureBody struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type turnResponse struct {
	Messages []messageBody   `json:"messages"`
	Failure  *failureBody    `json:"failure,omitempty"`
	Session  sessionResponse `json:"session"`
}

func toSession(s workflow.Snapshot) sessionResponse {
	out := sessionResponse{
		SessionID:       s.SessionID,
		Phase:           string(s.Phase),
		EvidencePending: s.EvidencePending,
		Verifying:       s.Verifying,
		Actions:         make([]string, 0, len(s.Actions)),
		Messages:        toMessages(s.Messages),
	}
	if d := s.ActiveDocket; d != nil {
		out.ActiveDocket = &docketBody{
			ID:           d.ID,
			CustomerName: d.CustomerName,
			Address:      d.Address,
			Status:       string(d.Status),
			PODVerified:  d.PODVerified,
			UpdatedAt:    d.UpdatedAt,
		}
	}
	for _, a := range s.Actions {
		out.Actions = append(out.Actions, string(a))
	}
	return out
}

func toTurn(msgs []domain.Message, failure *workflow.Error, snap workflow.Snapshot) turnResponse {
	out := turnResponse{Messages: toMessages(msgs), Session: toSession(snap)}
	if failure != nil {
		out.Failure = &failureBody{Code: string(failure.Code), Reason: failure.Reason}
	}
	return out
}

func toMessages(msgs []domain.Message) []messageBody {
	out := make([]messageBody, 0, len(msgs))
	for _, m := range msgs {
		body := messageBody{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Status:    string(m.Status),
			CreatedAt: m.CreatedAt,
		}
		if m.Image != nil {
			body.Image = &imageBody{
				ID:          m.Image.ID,
				Name:        m.Image.Name,
				ContentType: m.Image.ContentType,
				Size:        m.Image.Size,
			}
		}
		out = append(out, body)
	}
	return out
}
