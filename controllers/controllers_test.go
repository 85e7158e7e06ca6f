package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("device 3: %w", ledger.ErrNotFound), http.StatusNotFound},
		{db.ErrNoLayout, http.StatusNotFound},
		{db.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("Beamer: %w", ledger.ErrExhausted), http.StatusConflict},
		{ledger.ErrCapReached, http.StatusConflict},
		{ledger.ErrStockBelowLoaned, http.StatusConflict},
		{ledger.ErrScanCodeTaken, http.StatusConflict},
		{ledger.ErrDefective, http.StatusConflict},
		{fmt.Errorf("Mic: %w", db.ErrDeviceOnLoan), http.StatusConflict},
		{ledger.ErrEmptyCart, http.StatusBadRequest},
		{ledger.ErrInvalidQuantity, http.StatusBadRequest},
		{ledger.ErrInvalidBorrower, http.StatusBadRequest},
		{ledger.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: insert loan: %w", ledger.ErrStorage, errors.New("conn reset")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	s := &Srv{Log: zap.NewNop()}
	for _, tt := range []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: save device: %w", ledger.ErrStorage, errors.New("pq: secret detail")), "internal error"},
		{fmt.Errorf("Beamer: %w", ledger.ErrExhausted), "Beamer: no units available"},
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)
		s.writeError(c, tt.err)

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["error"] != tt.want {
			t.Fatalf("body = %v, want error %q", body, tt.want)
		}
	}
}

func TestDeviceQueryParsing(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/devices?q=cam&status=borrowed&category=Audio,Video&category=Light&group=7a&page=2&size=25", nil)

	q := deviceQuery(c)
	if q.Search != "cam" || q.Status != "borrowed" || q.SortBy != "name" || q.Page != 2 || q.Size != 25 {
		t.Fatalf("unexpected query %+v", q)
	}
	if len(q.Categories) != 3 || q.Categories[2] != "Light" || len(q.Groups) != 1 {
		t.Fatalf("unexpected lists %+v", q)
	}
}

func TestInt64Param(t *testing.T) {
	for raw, ok := range map[string]bool{"12": true, "0": false, "-1": false, "abc": false} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, err := int64Param(c, "id")
		if (err == nil) != ok {
			t.Errorf("int64Param(%q) err = %v", raw, err)
		}
		if err != nil && !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	}
}

func TestBorrowerFor(t *testing.T) {
	in := borrowInput{BorrowerID: "ext-1", Name: "  ", Group: " 7a "}

	personal := borrowerFor(&models.Warehouse{Mode: models.ModePersonal}, "u1", "Alice", in)
	if personal.ID != "u1" || personal.Name != "Alice" || personal.Group != "7a" {
		t.Fatalf("personal borrower = %+v", personal)
	}

	org := borrowerFor(&models.Warehouse{Mode: models.ModeOrganization}, "u1", "Alice", in)
	if org.ID != "ext-1" || org.Name != "" {
		t.Fatalf("organization borrower = %+v", org)
	}

	in.Name = "Bob"
	if b := borrowerFor(&models.Warehouse{Mode: models.ModePersonal}, "u1", "Alice", in); b.Name != "Bob" {
		t.Fatalf("explicit name should win, got %+v", b)
	}
}

func TestScanViews(t *testing.T) {
	e := ledger.CartEntry{DeviceID: 1, Quantity: 1}
	views := scanViews(ledger.BatchResult{Results: []ledger.ScanResult{
		{Code: "111111", Entry: &e},
		{Code: "999999", Err: fmt.Errorf("scan code %q: %w", "999999", ledger.ErrNotFound)},
	}})
	if len(views) != 2 || views[0].Error != "" || views[1].Error == "" || views[1].Entry != nil {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestLineDevices(t *testing.T) {
	l := &models.Loan{Lines: []models.LoanLine{{DeviceID: 4}, {DeviceID: 9}}}
	if ids := lineDevices(l); len(ids) != 2 || ids[0] != 4 || ids[1] != 9 {
		t.Fatalf("ids = %v", ids)
	}
}
