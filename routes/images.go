package routes

import (
	"errors"

	"github.com/gin-gonic/gin"

	"docchat-platform/internal/store"
	"docchat-platform/services"
	"docchat-platform/utils"
)

// SetupImageRoutes serves stored document images.
func SetupImageRoutes(api *gin.RouterGroup, images *store.ImageStore, storage *services.ImageStorage) {
	api.GET("/sessions/:id/images/:imageId", func(c *gin.Context) {
		sessionID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		imageID, ok := parseObjectID(c, "imageId")
		if !ok {
			return
		}

		image, err := images.Get(c.Request.Context(), imageID)
		if err != nil || image.SessionID != sessionID {
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				utils.RespondWithInternalError(c, "loading image failed", nil)
				return
			}
			utils.RespondWithNotFound(c, utils.CodeDocumentNotFound, "image not found")
			return
		}

		data, err := storage.Read(image.FilePath)
		if err != nil {
			utils.RespondWithNotFound(c, utils.CodeDocumentNotFound, "image bytes missing")
			return
		}
		c.Data(200, image.MimeType, data)
	})
}
