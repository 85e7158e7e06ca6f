package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// allowedOrigins splits WEB_ORIGIN, which may list several comma separated
// frontends (e.g. the scanner tablet and the admin UI).
func allowedOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func useCORS(r *gin.Engine, webOrigin string) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(webOrigin),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}))
}
