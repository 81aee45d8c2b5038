package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"live-stages/internal/domain"
	"live-stages/internal/usecase"
)

// SessionService is the core surface invoked by the API entry layer.
type SessionService interface {
	Create(ctx context.Context, in usecase.CreateInput) (usecase.CreateOutput, error)
	Join(ctx context.Context, in usecase.JoinInput) (usecase.JoinOutput, error)
	ChatToken(ctx context.Context, hostID, userID string, attributes map[string]string) (domain.ChatToken, error)
	Delete(ctx context.Context, hostID string) error
	Disconnect(ctx context.Context, hostID, userID, participantID string) error
	UpdateMode(ctx context.Context, in usecase.UpdateModeInput) error
	UpdateSeats(ctx context.Context, in usecase.UpdateSeatsInput) error
	CastVote(ctx context.Context, hostID, candidateID string) error
	List(ctx context.Context, filters map[string]string) ([]domain.StageRecord, error)
}

// Handler routes API Gateway proxy events to the session service.
type Handler struct {
	svc    SessionService
	region string
	apiKey string
}

// NewHandler creates a Handler. apiKey is the optional shared secret; when
// set, requests must carry it in the x-api-key header.
func NewHandler(svc SessionService, region, apiKey string) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: session service must not be nil")
	}
	return &Handler{svc: svc, region: region, apiKey: apiKey}, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type createResponse struct {
	HostParticipantToken domain.ParticipantToken `json:"hostParticipantToken"`
	Region               string                  `json:"region"`
}

type joinResponse struct {
	domain.ParticipantToken
	Region         string            `json:"region"`
	Metadata       map[string]any    `json:"metadata"`
	HostAttributes map[string]string `json:"hostAttributes,omitempty"`
}

type listResponse struct {
	Stages []domain.StageRecord `json:"stages"`
}

// Handle dispatches one API Gateway request.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, "x-correlation-id")
	if correlationID == "" {
		correlationID = newUUID()
	}

	if h.apiKey != "" && header(event.Headers, "x-api-key") != h.apiKey {
		return h.respondError(correlationID, http.StatusForbidden, "FORBIDDEN", "invalid or missing api key"), nil
	}

	route := event.HTTPMethod + " " + event.Path
	switch {
	case route == http.MethodGet+" /verify":
		return h.respondRaw(correlationID, http.StatusOK, "OK"), nil
	case route == http.MethodGet+" /list":
		return h.list(ctx, correlationID, event)
	case route == http.MethodPost+" /create":
		return h.create(ctx, correlationID, event)
	case route == http.MethodPost+" /join":
		return h.join(ctx, correlationID, event)
	case route == http.MethodPost+" /chatToken":
		return h.chatToken(ctx, correlationID, event)
	case route == http.MethodPost+" /delete":
		return h.delete(ctx, correlationID, event)
	case route == http.MethodPost+" /disconnect":
		return h.disconnect(ctx, correlationID, event)
	case route == http.MethodPost+" /castVote":
		return h.castVote(ctx, correlationID, event)
	case event.HTTPMethod == http.MethodPut && strings.HasPrefix(event.Path, "/update"):
		return h.update(ctx, correlationID, event)
	default:
		return h.respondError(correlationID, http.StatusNotFound, "NOT_FOUND", "unknown route"), nil
	}
}

func (h *Handler) create(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		CID            string            `json:"cid"`
		HostID         string            `json:"hostId"`
		HostAttributes map[string]string `json:"hostAttributes"`
		Type           string            `json:"type"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{
		"cid": body.CID, "hostId": body.HostID, "type": body.Type,
	}); !ok {
		return resp, nil
	}

	out, err := h.svc.Create(ctx, usecase.CreateInput{
		HostID:         body.HostID,
		Type:           body.Type,
		HostAttributes: body.HostAttributes,
		Scope:          body.CID,
	})
	if err != nil {
		return h.respondServiceError(correlationID, err), nil
	}

	code := http.StatusOK
	if out.Created {
		code = http.StatusCreated
	}
	return h.respond(correlationID, code, createResponse{
		HostParticipantToken: out.HostParticipantToken,
		Region:               h.region,
	}), nil
}

func (h *Handler) join(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		HostID     string            `json:"hostId"`
		UserID     string            `json:"userId"`
		Attributes map[string]string `json:"attributes"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{
		"hostId": body.HostID, "userId": body.UserID,
	}); !ok {
		return resp, nil
	}

	out, err := h.svc.Join(ctx, usecase.JoinInput{
		HostID:     body.HostID,
		UserID:     body.UserID,
		Attributes: body.Attributes,
	})
	if err != nil {
		return h.respondServiceError(correlationID, err), nil
	}

	resp := joinResponse{
		ParticipantToken: out.ParticipantToken,
		Region:           h.region,
		Metadata:         map[string]any{},
		HostAttributes:   out.HostAttributes,
	}
	if out.ActiveVotingSession != nil {
		resp.Metadata["activeVotingSession"] = out.ActiveVotingSession
	}
	return h.respond(correlationID, http.StatusOK, resp), nil
}

func (h *Handler) chatToken(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		HostID     string            `json:"hostId"`
		UserID     string            `json:"userId"`
		Attributes map[string]string `json:"attributes"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{
		"hostId": body.HostID, "userId": body.UserID,
	}); !ok {
		return resp, nil
	}

	token, err := h.svc.ChatToken(ctx, body.HostID, body.UserID, body.Attributes)
	if err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	return h.respond(correlationID, http.StatusOK, token), nil
}

func (h *Handler) delete(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		HostID string `json:"hostId"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{"hostId": body.HostID}); !ok {
		return resp, nil
	}

	if err := h.svc.Delete(ctx, body.HostID); err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	return h.respondRaw(correlationID, http.StatusNoContent, ""), nil
}

func (h *Handler) disconnect(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		HostID        string `json:"hostId"`
		UserID        string `json:"userId"`
		ParticipantID string `json:"participantId"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{
		"hostId": body.HostID, "userId": body.UserID, "participantId": body.ParticipantID,
	}); !ok {
		return resp, nil
	}

	if err := h.svc.Disconnect(ctx, body.HostID, body.UserID, body.ParticipantID); err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	return h.respond(correlationID, http.StatusOK, struct{}{}), nil
}

func (h *Handler) update(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	updateType := strings.Trim(strings.TrimPrefix(event.Path, "/update"), "/")
	updateType = strings.ToLower(strings.SplitN(updateType, "/", 2)[0])
	if updateType != "mode" && updateType != "seats" {
		return h.respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorValidation),
			"missing or incorrect update type parameter; endpoint should follow the format: update/{mode|seats}"), nil
	}

	var body struct {
		HostID string   `json:"hostId"`
		UserID string   `json:"userId"`
		Mode   string   `json:"mode"`
		Seats  []string `json:"seats"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{"hostId": body.HostID}); !ok {
		return resp, nil
	}

	var err error
	switch updateType {
	case "mode":
		if body.Mode == "" {
			return h.respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorValidation),
				`missing data to update - input should contain a "mode" data property`), nil
		}
		err = h.svc.UpdateMode(ctx, usecase.UpdateModeInput{HostID: body.HostID, Mode: body.Mode, UserID: body.UserID})
	case "seats":
		if body.Seats == nil {
			return h.respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorValidation),
				`missing data to update - input should contain a "seats" data property`), nil
		}
		err = h.svc.UpdateSeats(ctx, usecase.UpdateSeatsInput{HostID: body.HostID, Seats: body.Seats, UserID: body.UserID})
	}
	if err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	return h.respond(correlationID, http.StatusOK, struct{}{}), nil
}

func (h *Handler) castVote(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		HostID string `json:"hostId"`
		Vote   string `json:"vote"`
	}
	if resp, ok := h.parseBody(correlationID, event.Body, &body); !ok {
		return resp, nil
	}
	if resp, ok := h.requireFields(correlationID, map[string]string{
		"hostId": body.HostID, "vote": body.Vote,
	}); !ok {
		return resp, nil
	}

	if err := h.svc.CastVote(ctx, body.HostID, body.Vote); err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	return h.respondRaw(correlationID, http.StatusNoContent, ""), nil
}

func (h *Handler) list(ctx context.Context, correlationID string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	records, err := h.svc.List(ctx, event.QueryStringParameters)
	if err != nil {
		return h.respondServiceError(correlationID, err), nil
	}
	if records == nil {
		records = []domain.StageRecord{}
	}
	return h.respond(correlationID, http.StatusOK, listResponse{Stages: records}), nil
}

// parseBody unmarshals a request body, returning a 400 response when it is
// malformed.
func (h *Handler) parseBody(correlationID, body string, out any) (events.APIGatewayProxyResponse, bool) {
	if body == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return h.respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorValidation), "malformed request body"), false
	}
	return events.APIGatewayProxyResponse{}, true
}

// requireFields returns a 400 response naming every missing required field.
func (h *Handler) requireFields(correlationID string, fields map[string]string) (events.APIGatewayProxyResponse, bool) {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return events.APIGatewayProxyResponse{}, true
	}
	slices.Sort(missing)
	return h.respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorValidation),
		"Missing required input data: "+strings.Join(missing, ", ")), false
}

func (h *Handler) respondServiceError(correlationID string, err error) events.APIGatewayProxyResponse {
	var svcErr *usecase.Error
	if !errors.As(err, &svcErr) {
		return h.respondError(correlationID, http.StatusInternalServerError, string(usecase.ErrorInternal), "unexpected error occurred")
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case usecase.ErrorValidation, usecase.ErrorInvalidUpdate:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorConflict:
		status = http.StatusConflict
	case usecase.ErrorProvider:
		status = http.StatusBadGateway
	case usecase.ErrorResourceCreation, usecase.ErrorInternal:
		status = http.StatusInternalServerError
	}
	return h.respondError(correlationID, status, string(svcErr.Code), svcErr.Reason)
}

func (h *Handler) respond(correlationID string, status int, body any) events.APIGatewayProxyResponse {
	encoded, err := json.Marshal(body)
	if err != nil {
		return h.respondError(correlationID, http.StatusInternalServerError, string(usecase.ErrorInternal), "response encoding failed")
	}
	return h.respondRaw(correlationID, status, string(encoded))
}

func (h *Handler) respondError(correlationID string, status int, code, message string) events.APIGatewayProxyResponse {
	encoded, _ := json.Marshal(errorResponse{Error: code, Message: message})
	return h.respondRaw(correlationID, status, string(encoded))
}

func (h *Handler) respondRaw(correlationID string, status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Access-Control-Allow-Headers": "Content-Type",
			"Access-Control-Allow-Origin":  "*",
			"Content-Type":                 "application/json",
			"X-Correlation-Id":             correlationID,
		},
		Body: body,
	}
}

// header performs a case-insensitive header lookup.
func header(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
