package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/store"
	"docchat-platform/models"
	"docchat-platform/services"
	"docchat-platform/utils"
)

type createSessionRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

type updateSessionRequest struct {
	Title *string `json:"title"`
	Mode  *string `json:"mode"`
}

// SetupSessionRoutes registers session CRUD.
func SetupSessionRoutes(api *gin.RouterGroup, sessions *services.SessionService) {
	api.POST("/sessions", func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, "invalid request body", err.Error())
			return
		}

		mode := models.ModeExploring
		if req.Mode != "" {
			parsed, ok := models.ParseMode(req.Mode)
			if !ok {
				utils.RespondWithValidationError(c, "unknown mode", req.Mode)
				return
			}
			mode = parsed
		}

		session, err := sessions.Create(c.Request.Context(), req.Title, mode)
		if err != nil {
			utils.RespondWithInternalError(c, "creating session failed", nil)
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	api.GET("/sessions", func(c *gin.Context) {
		list, err := sessions.List(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "listing sessions failed", nil)
			return
		}
		if list == nil {
			list = []models.Session{}
		}
		c.JSON(http.StatusOK, list)
	})

	api.GET("/sessions/:id", func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		session, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			respondSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	api.PUT("/sessions/:id", func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		var req updateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, "invalid request body", err.Error())
			return
		}

		var mode *models.Mode
		if req.Mode != nil {
			parsed, ok := models.ParseMode(*req.Mode)
			if !ok {
				utils.RespondWithValidationError(c, "unknown mode", *req.Mode)
				return
			}
			mode = &parsed
		}

		session, err := sessions.Update(c.Request.Context(), id, req.Title, mode)
		if err != nil {
			respondSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	api.PUT("/sessions/:id/mode", func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		var raw string
		if err := c.ShouldBindJSON(&raw); err != nil {
			utils.RespondWithValidationError(c, "expected a mode string", err.Error())
			return
		}
		mode, valid := models.ParseMode(raw)
		if !valid {
			utils.RespondWithValidationError(c, "unknown mode", raw)
			return
		}

		session, err := sessions.Update(c.Request.Context(), id, nil, &mode)
		if err != nil {
			respondSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	api.DELETE("/sessions/:id", func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		if err := sessions.Delete(c.Request.Context(), id); err != nil {
			respondSessionError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.RespondWithValidationError(c, "invalid id", c.Param(param))
		return primitive.NilObjectID, false
	}
	return id, true
}

func respondSessionError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithNotFound(c, utils.CodeSessionNotFound, "session not found")
		return
	}
	utils.RespondWithInternalError(c, "session operation failed", nil)
}
