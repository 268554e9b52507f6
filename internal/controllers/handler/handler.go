package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"teamchat/internal/appers"
	"teamchat/internal/application/common"
	"teamchat/internal/application/entity"
	"teamchat/internal/application/service"
	use_cases "teamchat/internal/application/use-cases"
	"teamchat/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type Handler interface {
	Dispatch(c *fiber.Ctx) error
	GetOutboxEvent(c *fiber.Ctx) error
	ListOutbox(c *fiber.Ctx) error
	SyncAppManifest(c *fiber.Ctx) error

	ListNotifications(c *fiber.Ctx) error
	MarkNotificationRead(c *fiber.Ctx) error
	UpsertPreference(c *fiber.Ctx) error

	MarkOnline(c *fiber.Ctx) error
	MarkOffline(c *fiber.Ctx) error
	RefreshPresence(c *fiber.Ctx) error
	OnlineUsers(c *fiber.Ctx) error
	StartTyping(c *fiber.Ctx) error
	StopTyping(c *fiber.Ctx) error
	TypingIndicator(c *fiber.Ctx) error

	ListAuditLogs(c *fiber.Ctx) error

	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewHandler(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *HandlerImpl {
	return &HandlerImpl{
		usecase: usecase,
		logger:  logger,
	}
}

func formatValidationErrors(err error) fiber.Map {
	var details []string
	var validationErrors playgroundvalidator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			var message string
			switch tag {
			case "required":
				message = fmt.Sprintf("field '%s' is required", field)
			case "notify_level":
				message = fmt.Sprintf("field '%s' must be one of: all, mentions, nothing", field)
			case "clock", "clock_optional":
				message = fmt.Sprintf("field '%s' must be a HH:MM clock value", field)
			default:
				message = fmt.Sprintf("field '%s' failed validation: %s", field, tag)
			}
			details = append(details, message)
		}
	} else {
		details = append(details, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": details,
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseUUIDQuery(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Query(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s query param is required and must be a uuid", name)
	}
	return id, nil
}

func limitQuery(c *fiber.Ctx, def int) int {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	return limit
}

func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dbHealthy, kafkaHealthy, redisHealthy, _ := h.usecase.HealthCheck(ctx)
	allHealthy := dbHealthy && kafkaHealthy && redisHealthy

	health := entity.HealthCheckResponse{
		Status:  allHealthy,
		Message: "success",
		Version: common.Version,
		Checks: entity.HealthCheckResponseData{
			Database: entity.HealthCheckItem{Status: dbHealthy, Type: "postgresql"},
			Kafka:    entity.HealthCheckItem{Status: kafkaHealthy, Type: "kafka"},
			Redis:    entity.HealthCheckItem{Status: redisHealthy, Type: "redis"},
		},
	}
	if !dbHealthy {
		health.Checks.Database.Error = "Database connection failed"
	}
	if !kafkaHealthy {
		health.Checks.Kafka.Error = "Kafka connection failed"
	}
	if !redisHealthy {
		health.Checks.Redis.Error = "Redis connection failed"
	}
	if !allHealthy {
		health.Message = "Some services are unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return c.Status(fiber.StatusOK).JSON(health)
}

type dispatchRequest struct {
	AppID     uuid.UUID       `json:"app_id" validate:"required"`
	EventType string          `json:"event_type" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	ActorID   *uuid.UUID      `json:"actor_id"`
}

// Dispatch enqueues an outbound delivery; the callback POST happens
// asynchronously on the relay, the response only confirms persistence.
func (h *HandlerImpl) Dispatch(c *fiber.Ctx) error {
	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	evt, err := h.usecase.Dispatch(c.Context(), service.DispatchRequest{
		AppID:     req.AppID,
		EventType: entity.OutboxEventType(req.EventType),
		Payload:   req.Payload,
		ActorID:   req.ActorID,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     evt.ID,
		"status": evt.Status,
	})
}

func (h *HandlerImpl) GetOutboxEvent(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid outbox event id")
	}

	evt, err := h.usecase.GetOutboxEvent(c.Context(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(evt)
}

func (h *HandlerImpl) ListOutbox(c *fiber.Ctx) error {
	workspaceID, err := parseUUIDQuery(c, "workspace_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	status := entity.OutboxStatus(c.Query("status", string(entity.OutboxPending)))
	switch status {
	case entity.OutboxPending, entity.OutboxSuccess, entity.OutboxFailed:
	default:
		return badRequest(c, "status must be PENDING, SUCCESS or FAILED")
	}

	events, err := h.usecase.ListOutbox(c.Context(), workspaceID, status, limitQuery(c, 50))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(events)
}

func (h *HandlerImpl) SyncAppManifest(c *fiber.Ctx) error {
	appID, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	app, err := h.usecase.SyncAppManifest(c.Context(), appID)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(app)
}

func (h *HandlerImpl) ListNotifications(c *fiber.Ctx) error {
	userID, err := parseUUIDQuery(c, "user_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	notifications, err := h.usecase.ListNotifications(c.Context(), userID, limitQuery(c, 50))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(notifications)
}

func (h *HandlerImpl) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid notification id")
	}
	userID, err := parseUUIDQuery(c, "user_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.usecase.MarkNotificationRead(c.Context(), id, userID); err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

type preferenceRequest struct {
	UserID         uuid.UUID  `json:"user_id" validate:"required"`
	ConversationID uuid.UUID  `json:"conversation_id" validate:"required"`
	NotifyLevel    string     `json:"notify_level" validate:"required,notify_level"`
	MobilePush     bool       `json:"mobile_push"`
	DesktopPush    bool       `json:"desktop_push"`
	Email          bool       `json:"email"`
	MutedUntil     *time.Time `json:"muted_until"`
}

func (h *HandlerImpl) UpsertPreference(c *fiber.Ctx) error {
	var req preferenceRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	err := h.usecase.UpsertPreference(c.Context(), &entity.NotificationPreference{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		NotifyLevel:    entity.NotifyLevel(req.NotifyLevel),
		MobilePush:     req.MobilePush,
		DesktopPush:    req.DesktopPush,
		Email:          req.Email,
		MutedUntil:     req.MutedUntil,
	})
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

type presenceRequest struct {
	WorkspaceID uuid.UUID `json:"workspace_id" validate:"required"`
	UserID      uuid.UUID `json:"user_id" validate:"required"`
}

func (h *HandlerImpl) MarkOnline(c *fiber.Ctx) error {
	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	if err := h.usecase.MarkOnline(c.Context(), req.WorkspaceID, req.UserID); err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

func (h *HandlerImpl) MarkOffline(c *fiber.Ctx) error {
	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	if err := h.usecase.MarkOffline(c.Context(), req.WorkspaceID, req.UserID); err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

func (h *HandlerImpl) RefreshPresence(c *fiber.Ctx) error {
	userID, err := parseUUIDQuery(c, "user_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	refreshed, err := h.usecase.RefreshPresence(c.Context(), userID)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"refreshed": refreshed})
}

func (h *HandlerImpl) OnlineUsers(c *fiber.Ctx) error {
	workspaceID, err := parseUUIDQuery(c, "workspace_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	users, err := h.usecase.OnlineUsers(c.Context(), workspaceID)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if users == nil {
		users = []uuid.UUID{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"users": users})
}

type typingRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	UserID         uuid.UUID `json:"user_id" validate:"required"`
}

func (h *HandlerImpl) StartTyping(c *fiber.Ctx) error {
	var req typingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	if err := h.usecase.StartTyping(c.Context(), req.ConversationID, req.UserID); err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

func (h *HandlerImpl) StopTyping(c *fiber.Ctx) error {
	var req typingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.Validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	if err := h.usecase.StopTyping(c.Context(), req.ConversationID, req.UserID); err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"description": "ok"})
}

func (h *HandlerImpl) TypingIndicator(c *fiber.Ctx) error {
	conversationID, err := parseUUIDQuery(c, "conversation_id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	// user_id is the asking client, excluded from the indicator.
	excludeUser, _ := uuid.FromString(c.Query("user_id"))

	message, err := h.usecase.TypingIndicator(c.Context(), conversationID, excludeUser)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": message})
}

func (h *HandlerImpl) ListAuditLogs(c *fiber.Ctx) error {
	workspaceID, err := parseUUIDQuery(c, "workspace_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	logs, err := h.usecase.ListAuditLogs(c.Context(), workspaceID, limitQuery(c, 100))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(logs)
}
