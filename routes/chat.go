package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/models"
	"docchat-platform/services"
	"docchat-platform/utils"
)

const defaultMessageLimit = 50

type chatRequest struct {
	Message string `json:"message"`
}

// SetupChatRoutes registers the SSE stream and message history.
func SetupChatRoutes(api *gin.RouterGroup, chat *services.ChatService, turns *store.TurnStore) {
	api.POST("/sessions/:id/chat/stream", func(c *gin.Context) {
		sessionID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}

		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, "invalid request body", err.Error())
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			utils.RespondWithValidationError(c, "message must not be empty", nil)
			return
		}

		events, err := chat.StreamChat(c.Request.Context(), sessionID, req.Message)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, utils.CodeSessionNotFound, "session not found")
				return
			}
			utils.RespondWithInternalError(c, "starting chat failed", nil)
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Flush()

		for event := range events {
			writeSSE(c, event)
		}
	})

	api.GET("/sessions/:id/messages", func(c *gin.Context) {
		sessionID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		limit := defaultMessageLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				utils.RespondWithValidationError(c, "limit must be a positive integer", raw)
				return
			}
			limit = parsed
		}

		list, err := turns.ListRecent(c.Request.Context(), sessionID, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "listing messages failed", nil)
			return
		}
		if list == nil {
			list = []models.ChatTurn{}
		}
		c.JSON(http.StatusOK, list)
	})
}

// writeSSE frames one event; the payload is the event-specific object.
func writeSSE(c *gin.Context, event models.StreamEvent) {
	var payload interface{}
	switch event.Type {
	case models.EventToken:
		payload = event.Token
	case models.EventCitation:
		payload = event.Citation
	case models.EventDone:
		payload = event.Done
	case models.EventError:
		payload = event.Error
	default:
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Marshaling SSE event failed", "type", event.Type, "error", err)
		return
	}
	c.Writer.WriteString("event: " + event.Type + "\n")
	c.Writer.WriteString("data: " + string(data) + "\n\n")
	c.Writer.Flush()
}
