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

	"market-bot/internal/integrations/line"
	"market-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type EventHandler interface {
	HandleEvent(ctx context.Context, in usecase.EventInput) (usecase.ReplyOutput, error)
}

type webhookResponse struct {
	Status  string `json:"status"`
	Handled int    `json:"handled"`
	Skipped int    `json:"skipped"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handler serves the LINE webhook as an API Gateway proxy integration.
type Handler struct {
	uc            EventHandler
	channelSecret string
	logger        *slog.Logger
}

type Option func(*Handler)

// WithChannelSecret enables X-Line-Signature validation.
func WithChannelSecret(secret string) Option {
	return func(h *Handler) { h.channelSecret = strings.TrimSpace(secret) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(uc EventHandler, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("component", "webhook"))
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With(slog.String("correlation_id", correlationID))

	body, err := requestBody(req)
	if err != nil {
		return h.fail(ctx, logger, correlationID, usecase.NewInvalidInput("body_encoding", err)), nil
	}

	if h.channelSecret != "" && !line.VerifySignature(h.channelSecret, body, header(req.Headers, line.SignatureHeader)) {
		return h.fail(ctx, logger, correlationID, usecase.NewUnauthorized("signature_mismatch")), nil
	}

	env, err := line.ParseEnvelope(body)
	if err != nil {
		return h.fail(ctx, logger, correlationID, usecase.NewInvalidInput("malformed_json", err)), nil
	}

	// Every event gets its own reply attempt; the worst failure decides the status.
	var (
		worstErr    error
		worstStatus int
	)
	out := webhookResponse{Status: "ok"}
	for _, ev := range env.Events {
		text, ok := ev.TextMessage()
		if !ok {
			out.Skipped++
			continue
		}
		reply, err := h.uc.HandleEvent(ctx, usecase.EventInput{
			UserID:     ev.Source.UserID,
			ReplyToken: ev.ReplyToken,
			Text:       text,
		})
		if err != nil {
			status, _ := mapError(err)
			logger.WarnContext(ctx, "event failed",
				slog.String("user_id", ev.Source.UserID),
				slog.Int("status", status),
				slog.Any("error", err),
			)
			if status > worstStatus {
				worstStatus, worstErr = status, err
			}
			continue
		}
		logger.InfoContext(ctx, "event handled",
			slog.String("user_id", ev.Source.UserID),
			slog.String("intent", string(reply.Intent.Kind)),
			slog.Int("messages", len(reply.Messages)),
		)
		out.Handled++
	}
	if worstErr != nil {
		return h.fail(ctx, logger, correlationID, worstErr), nil
	}

	return jsonResponse(http.StatusOK, correlationID, out), nil
}

func (h *Handler) fail(ctx context.Context, logger *slog.Logger, correlationID string, err error) events.APIGatewayProxyResponse {
	status, resp := mapError(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "webhook failed",
		slog.Int("status", status),
		slog.String("code", resp.Error),
		slog.String("reason", resp.Reason),
		slog.Any("error", err),
	)
	return jsonResponse(status, correlationID, resp)
}

func mapError(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	resp := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, resp
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized, resp
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, resp
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

// header does a case-insensitive lookup; API Gateway preserves client casing.
func header(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, correlationID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}
