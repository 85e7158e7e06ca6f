package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionController struct{ *Srv }

func NewSessionController(s *Srv) *SessionController { return &SessionController{Srv: s} }

// Login resolves the acting user by the shared id and issues a session.
// POST /api/session {"userId": "..."}
func (sc *SessionController) Login(c *gin.Context) {
	var in struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	u, err := sc.Repo.FindUserByID(ctx, strings.TrimSpace(in.UserID))
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unknown user"})
		return
	}
	if err != nil {
		sc.writeError(c, err)
		return
	}
	if _, err := sc.issueSession(ctx, c.Writer, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		sc.writeError(c, err)
		return
	}
	sc.Log.Info("login", zap.String("user", u.ID))
	c.JSON(http.StatusOK, app.H{
		"user":    u,
		"isAdmin": u.IsAdmin || sc.Cfg.IsAdminID(u.ID),
	})
}

// WhoAmI returns the acting user. GET /api/session
func (sc *SessionController) WhoAmI(c *gin.Context) {
	u, err := sc.Repo.FindUserByID(c.Request.Context(), app.UserID(c))
	if err != nil {
		sc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"user":            u,
		"isAdmin":         app.IsAdmin(c),
		"lastWarehouseId": app.LastWarehouseID(c),
	})
}

// Logout drops the session and its cookie. DELETE /api/session
func (sc *SessionController) Logout(c *gin.Context) {
	if sid := app.SessionID(c); sid != "" {
		_ = sc.AppSess.Delete(c.Request.Context(), sid)
	}
	sc.setAppCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
