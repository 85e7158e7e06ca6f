package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
)

func TestCanAccess(t *testing.T) {
	w := &models.Warehouse{CreatedBy: "owner", Members: []models.User{{ID: "m1"}}}
	tests := map[string]bool{"owner": true, "m1": true, "stranger": false, "": false}
	for uid, want := range tests {
		if got := CanAccess(w, uid); got != want {
			t.Errorf("CanAccess(%q) = %v, want %v", uid, got, want)
		}
	}
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, admin := range []bool{true, false} {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			SetIdentity(c, "u1", "User", "sid", admin)
			c.Next()
		}, AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		want := http.StatusForbidden
		if admin {
			want = http.StatusNoContent
		}
		if w.Code != want {
			t.Fatalf("admin=%v: status %d, want %d", admin, w.Code, want)
		}
	}
}

func TestRequestContextHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if Warehouse(c) != nil || UserID(c) != "" || IsAdmin(c) {
		t.Fatal("empty context should have no identity")
	}
	SetIdentity(c, "u1", "Alice", "sid-1", true)
	SetWarehouse(c, &models.Warehouse{ID: "w1"})
	if UserID(c) != "u1" || UserName(c) != "Alice" || SessionID(c) != "sid-1" || !IsAdmin(c) {
		t.Fatal("identity not stored")
	}
	if w := Warehouse(c); w == nil || w.ID != "w1" {
		t.Fatalf("warehouse = %+v", w)
	}
}

func TestAllowedOrigins(t *testing.T) {
	got := allowedOrigins(" http://localhost:5173/ ,https://dms.example.org,, ")
	if len(got) != 2 || got[0] != "http://localhost:5173" || got[1] != "https://dms.example.org" {
		t.Fatalf("allowedOrigins = %q", got)
	}
}

func TestCORSExposesContentDisposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	useCORS(r, "http://scanner.local")
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://scanner.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://scanner.local" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "Content-Disposition" {
		t.Fatalf("expose headers = %q", got)
	}
}
