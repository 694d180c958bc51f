// Package handler exposes the docket workflow over API Gateway proxy events.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/observability"
	"pod-assistant/internal/workflow"
)

const (
	correlationHeader = "X-Correlation-Id"

	errorRouteNotFound    = "ROUTE_NOT_FOUND"
	errorMethodNotAllowed = "METHOD_NOT_ALLOWED"
	errorInternal         = "INTERNAL"
)

// Workflow is the subset of *workflow.Engine the handler drives.
type Workflow interface {
	OpenSession(ctx context.Context) workflow.Snapshot
	CloseSession(ctx context.Context, sessionID string) error
	Snapshot(sessionID string) (workflow.Snapshot, error)
	SubmitText(ctx context.Context, sessionID, text string) (workflow.Turn, error)
	UploadImage(ctx context.Context, sessionID string, img domain.Image) (workflow.Turn, *workflow.Analysis, error)
	Reset(ctx context.Context, sessionID string) (workflow.Turn, error)
}

type Handler struct {
	wf Workflow
}

func NewHandler(wf Workflow) (*Handler, error) {
	if wf == nil {
		return nil, errors.New("handler: workflow must not be nil")
	}
	return &Handler{wf: wf}, nil
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

type messageRequest struct {
	Text string `json:"text"`
}

type imageRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	// Data is standard base64, optionally as a data URI.
	Data string `json:"data"`
}

// Handle routes one API Gateway proxy request. Failures are always rendered
// as JSON responses; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(event.Headers, correlationHeader)
	if corrID == "" {
		corrID = newCorrelationID()
	}
	ctx = observability.WithCorrelationID(ctx, corrID)
	log := observability.LoggerFromContext(ctx).With("method", event.HTTPMethod, "path", event.Path)

	status, body := h.route(ctx, log, event)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status)
	} else {
		log.Info("request handled", "status", status)
	}
	return respond(status, corrID, body), nil
}

func (h *Handler) route(ctx context.Context, log *slog.Logger, event events.APIGatewayProxyRequest) (int, any) {
	parts := splitPath(event.Path)
	if len(parts) == 0 || parts[0] != "sessions" || len(parts) > 3 {
		return http.StatusNotFound, errorResponse{Error: errorRouteNotFound}
	}
	method := strings.ToUpper(event.HTTPMethod)

	if len(parts) == 1 {
		if method != http.MethodPost {
			return http.StatusMethodNotAllowed, errorResponse{Error: errorMethodNotAllowed}
		}
		return http.StatusCreated, toSession(h.wf.OpenSession(ctx))
	}

	sessionID := parts[1]
	if len(parts) == 2 {
		switch method {
		case http.MethodGet:
			snap, err := h.wf.Snapshot(sessionID)
			if err != nil {
				return errorStatus(log, err)
			}
			return http.StatusOK, toSession(snap)
		case http.MethodDelete:
			if err := h.wf.CloseSession(ctx, sessionID); err != nil {
				return errorStatus(log, err)
			}
			return http.StatusNoContent, nil
		default:
			return http.StatusMethodNotAllowed, errorResponse{Error: errorMethodNotAllowed}
		}
	}

	if method != http.MethodPost {
		return http.StatusMethodNotAllowed, errorResponse{Error: errorMethodNotAllowed}
	}
	switch parts[2] {
	case "messages":
		return h.postMessage(ctx, log, sessionID, event)
	case "images":
		return h.postImage(ctx, log, sessionID, event)
	case "reset":
		turn, err := h.wf.Reset(ctx, sessionID)
		if err != nil {
			return errorStatus(log, err)
		}
		return http.StatusOK, toTurn(turn.Messages, turn.Failure, turn.Snapshot)
	default:
		return http.StatusNotFound, errorResponse{Error: errorRouteNotFound}
	}
}

func (h *Handler) postMessage(ctx context.Context, log *slog.Logger, sessionID string, event events.APIGatewayProxyRequest) (int, any) {
	var req messageRequest
	if err := decodeBody(event, &req); err != nil {
		return http.StatusBadRequest, errorResponse{Error: string(workflow.ErrorInvalidInput), Reason: "invalid_body"}
	}
	turn, err := h.wf.SubmitText(ctx, sessionID, req.Text)
	if err != nil {
		return errorStatus(log, err)
	}
	return http.StatusOK, toTurn(turn.Messages, turn.Failure, turn.Snapshot)
}

// postImage starts verification and waits for it so the response carries the
// verdict. The Lambda runtime freezes once a response is returned.
func (h *Handler) postImage(ctx context.Context, log *slog.Logger, sessionID string, event events.APIGatewayProxyRequest) (int, any) {
	var req imageRequest
	if err := decodeBody(event, &req); err != nil {
		return http.StatusBadRequest, errorResponse{Error: string(workflow.ErrorInvalidInput), Reason: "invalid_body"}
	}
	data, err := decodeImageData(req.Data)
	if err != nil {
		return http.StatusBadRequest, errorResponse{Error: string(workflow.ErrorInvalidInput), Reason: "invalid_image_encoding"}
	}
	img := domain.Image{Name: strings.TrimSpace(req.Name), ContentType: strings.TrimSpace(req.ContentType), Data: data}

	turn, analysis, err := h.wf.UploadImage(ctx, sessionID, img)
	if err != nil {
		return errorStatus(log, err)
	}
	if analysis == nil {
		return http.StatusOK, toTurn(turn.Messages, turn.Failure, turn.Snapshot)
	}

	result, err := analysis.Wait(ctx)
	if err != nil {
		log.Warn("verification still running at response time", "message_id", analysis.MessageID, "err", err)
		return http.StatusAccepted, toTurn(turn.Messages, turn.Failure, turn.Snapshot)
	}
	snap, err := h.wf.Snapshot(sessionID)
	if err != nil {
		// Closed while verifying.
		return http.StatusOK, toTurn(turn.Messages, result.Failure, turn.Snapshot)
	}
	return http.StatusOK, toTurn(refreshMessages(turn.Messages, snap.Messages), result.Failure, snap)
}

func decodeBody(event events.APIGatewayProxyRequest, dst any) error {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return err
		}
		body = decoded
	}
	return json.Unmarshal(body, dst)
}

func decodeImageData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ";base64,")
		if i < 0 {
			return nil, errors.New("handler: data uri is not base64")
		}
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}

// refreshMessages replaces turn messages with their current version from the
// session log, picking up resolved loading messages.
func refreshMessages(turn, current []domain.Message) []domain.Message {
	byID := make(map[string]domain.Message, len(current))
	for _, m := range current {
		byID[m.ID] = m
	}
	out := make([]domain.Message, 0, len(turn))
	for _, m := range turn {
		if latest, ok := byID[m.ID]; ok {
			m = latest
		}
		out = append(out, m)
	}
	return out
}

func errorStatus(log *slog.Logger, err error) (int, any) {
	var wfErr *workflow.Error
	if !errors.As(err, &wfErr) {
		log.Error("unexpected workflow error", "err", err)
		return http.StatusInternalServerError, errorResponse{Error: errorInternal}
	}
	body := errorResponse{Error: string(wfErr.Code), Reason: wfErr.Reason}
	switch wfErr.Code {
	case workflow.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case workflow.ErrorSessionNotFound, workflow.ErrorNotFound:
		return http.StatusNotFound, body
	case workflow.ErrorPreconditionFailed:
		return http.StatusConflict, body
	case workflow.ErrorVerifier, workflow.ErrorAssistant:
		return http.StatusBadGateway, body
	default:
		log.Error("workflow error", "code", wfErr.Code, "reason", wfErr.Reason, "err", wfErr.Err)
		return http.StatusInternalServerError, body
	}
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func respond(status int, corrID string, body any) events.APIGatewayProxyResponse {
	headers := map[string]string{correlationHeader: corrID}
	if body == nil {
		return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"` + errorInternal + `"}`)
	}
	headers["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(raw)}
}
