package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"docchat-platform/internal/store"
)

// SetupHealthRoutes registers liveness and operational stats.
func SetupHealthRoutes(router *gin.Engine, client *mongo.Client, rdb *redis.Client, documents *store.DocumentStore, inspector *asynq.Inspector) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/stats", func(c *gin.Context) {
		ctx := c.Request.Context()

		mongoStatus := "ok"
		if err := client.Ping(ctx, nil); err != nil {
			mongoStatus = "down"
		}
		redisStatus := "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}

		counts, err := documents.CountsByStatus(ctx)
		if err != nil {
			counts = map[string]int64{}
		}

		queues := gin.H{}
		if names, err := inspector.Queues(); err == nil {
			for _, name := range names {
				info, err := inspector.GetQueueInfo(name)
				if err != nil {
					continue
				}
				queues[name] = gin.H{
					"pending":   info.Pending,
					"active":    info.Active,
					"retry":     info.Retry,
					"archived":  info.Archived,
					"processed": info.Processed,
					"failed":    info.Failed,
				}
			}
		}

		status := http.StatusOK
		if mongoStatus != "ok" || redisStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"mongo":     mongoStatus,
			"redis":     redisStatus,
			"documents": counts,
			"queues":    queues,
			"time":      time.Now().UTC(),
		})
	})
}
