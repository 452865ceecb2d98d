package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-platform/internal/store"
	"docchat-platform/models"
	"docchat-platform/services"
	"docchat-platform/utils"
)

// SetupDocumentRoutes registers upload, listing, status and deletion.
func SetupDocumentRoutes(api *gin.RouterGroup, documents *services.DocumentService, sessions *services.SessionService) {
	api.POST("/sessions/:id/documents", func(c *gin.Context) {
		sessionID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		if _, err := sessions.Get(c.Request.Context(), sessionID); err != nil {
			respondSessionError(c, err)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithValidationError(c, "multipart field 'file' is required", err.Error())
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "reading upload failed", nil)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "reading upload failed", nil)
			return
		}

		mimeType := fileHeader.Header.Get("Content-Type")
		doc, err := documents.Upload(c.Request.Context(), sessionID, fileHeader.Filename, mimeType, data)
		switch {
		case errors.Is(err, services.ErrUnsupportedMime):
			utils.RespondWithValidationError(c, "unsupported file type", mimeType)
		case errors.Is(err, services.ErrFileTooLarge):
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeDocumentTooLarge, "file exceeds the 50 MiB limit", nil)
		case errors.Is(err, services.ErrDuplicateFile):
			// Idempotent: return the already-uploaded document.
			c.JSON(http.StatusOK, doc)
		case err != nil:
			utils.RespondWithInternalError(c, "upload failed", nil)
		default:
			c.JSON(http.StatusCreated, doc)
		}
	})

	api.GET("/sessions/:id/documents", func(c *gin.Context) {
		sessionID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		list, err := documents.List(c.Request.Context(), sessionID)
		if err != nil {
			utils.RespondWithInternalError(c, "listing documents failed", nil)
			return
		}
		if list == nil {
			list = []models.Document{}
		}
		c.JSON(http.StatusOK, list)
	})

	api.GET("/documents/:id", documentGetter(documents))
	api.GET("/documents/:id/status", documentGetter(documents))

	api.DELETE("/documents/:id", func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		if err := documents.Delete(c.Request.Context(), id); err != nil {
			respondDocumentError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func documentGetter(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		doc, err := documents.Get(c.Request.Context(), id)
		if err != nil {
			respondDocumentError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func respondDocumentError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithNotFound(c, utils.CodeDocumentNotFound, "document not found")
		return
	}
	utils.RespondWithInternalError(c, "document operation failed", nil)
}
