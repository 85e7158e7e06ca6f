package controllers

import (
	"errors"
	"net/http"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusTable = []struct {
	err    error
	status int
}{
	{ledger.ErrNotFound, http.StatusNotFound},
	{db.ErrNoLayout, http.StatusNotFound},
	{db.ErrForbidden, http.StatusForbidden},
	{ledger.ErrExhausted, http.StatusConflict},
	{ledger.ErrCapReached, http.StatusConflict},
	{ledger.ErrStockBelowLoaned, http.StatusConflict},
	{ledger.ErrScanCodeTaken, http.StatusConflict},
	{ledger.ErrDefective, http.StatusConflict},
	{db.ErrDeviceOnLoan, http.StatusConflict},
	{ledger.ErrEmptyCart, http.StatusBadRequest},
	{ledger.ErrInvalidQuantity, http.StatusBadRequest},
	{ledger.ErrInvalidBorrower, http.StatusBadRequest},
	{ledger.ErrInvalidInput, http.StatusBadRequest},
}

// statusFor maps an error to its HTTP status; unknown errors are 500.
func statusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError answers with {"error": ...}. Internal details stay in the log.
func (s *Srv) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, app.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": msg})
}
