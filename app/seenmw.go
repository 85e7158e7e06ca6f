package app

import (
	"time"

	"github.com/Matti-Krebelder/DMS/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen records activity at most once per throttle window per user.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			c.Next()
			return
		}

		key := "dms:user:lastseen:" + uid
		if ok, _ := rdb.SetNX(c.Request.Context(), key, "1", throttle).Result(); ok {
			_ = repo.TouchUserSeen(c.Request.Context(), uid) // best effort
		}
		c.Next()
	}
}
