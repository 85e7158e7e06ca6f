package app

import (
	"errors"
	"net/http"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"
	"github.com/Matti-Krebelder/DMS/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "dms_session"

// Context keys set by the middlewares below.
const (
	ctxUserID    = "userID"
	ctxUserName  = "userName"
	ctxIsAdmin   = "isAdmin"
	ctxSessionID = "sessionID"
	ctxWarehouse = "warehouse"

	ctxLastWarehouse = "lastWarehouseID"
)

func AuthRequired(appSess *session.AppSessionStore, repo *db.Repo, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// the user may have been removed since login
		u, err := repo.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxUserName, u.DisplayName)
		c.Set(ctxSessionID, ck.Value)
		c.Set(ctxIsAdmin, u.IsAdmin || cfg.IsAdminID(u.ID))
		if as.WarehouseID != "" {
			c.Set(ctxLastWarehouse, as.WarehouseID)
		}

		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// WarehouseAccess loads the warehouse named by :wid and checks that the user
// owns it or is a member. Admins may open every warehouse. The session
// remembers the warehouse so the client can reopen it after a reload.
func WarehouseAccess(repo *db.Repo, appSess *session.AppSessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		wid := c.Param("wid")
		w, err := repo.FindWarehouse(c.Request.Context(), wid)
		if errors.Is(err, ledger.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, H{"error": "warehouse not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": err.Error()})
			return
		}
		if !IsAdmin(c) && !CanAccess(w, UserID(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "no access to this warehouse"})
			return
		}
		c.Set(ctxWarehouse, w)
		if sid := SessionID(c); appSess != nil && sid != "" {
			_ = appSess.Touch(c.Request.Context(), sid, UserID(c), w.ID)
		}
		c.Next()
	}
}

// CanAccess reports whether userID owns w or is one of its members.
func CanAccess(w *models.Warehouse, userID string) bool {
	if w.CreatedBy == userID {
		return true
	}
	for _, m := range w.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func UserID(c *gin.Context) string    { return c.GetString(ctxUserID) }
func UserName(c *gin.Context) string  { return c.GetString(ctxUserName) }
func SessionID(c *gin.Context) string { return c.GetString(ctxSessionID) }
func IsAdmin(c *gin.Context) bool     { return c.GetBool(ctxIsAdmin) }

// LastWarehouseID is the warehouse the session worked in before this request.
func LastWarehouseID(c *gin.Context) string { return c.GetString(ctxLastWarehouse) }

// Warehouse returns the warehouse loaded by WarehouseAccess.
func Warehouse(c *gin.Context) *models.Warehouse {
	v, ok := c.Get(ctxWarehouse)
	if !ok {
		return nil
	}
	w, _ := v.(*models.Warehouse)
	return w
}

// SetIdentity is used by tests and by login to seed the request context.
func SetIdentity(c *gin.Context, userID, name, sessionID string, admin bool) {
	c.Set(ctxUserID, userID)
	c.Set(ctxUserName, name)
	c.Set(ctxSessionID, sessionID)
	c.Set(ctxIsAdmin, admin)
}

func SetWarehouse(c *gin.Context, w *models.Warehouse) { c.Set(ctxWarehouse, w) }
