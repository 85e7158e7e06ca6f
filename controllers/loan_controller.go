package controllers

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// GET /loans?status=&borrower=&page=&size=
func (lc *LoanController) List(c *gin.Context) {
	f := db.LoanFilter{
		Status:   c.Query("status"),
		Borrower: c.Query("borrower"),
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Size, _ = strconv.Atoi(c.DefaultQuery("size", "50"))
	res, err := lc.Repo.ListLoans(c.Request.Context(), app.Warehouse(c).ID, f)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /loans/:loanId
func (lc *LoanController) Get(c *gin.Context) {
	l, err := lc.Loans.FindLoan(c.Request.Context(), app.Warehouse(c).ID, c.Param("loanId"))
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Slip serves the archived borrow slip, rendering it when none exists yet.
// GET /loans/:loanId/slip
func (lc *LoanController) Slip(c *gin.Context) {
	wid := app.Warehouse(c).ID
	l, err := lc.Loans.FindLoan(c.Request.Context(), wid, c.Param("loanId"))
	if err != nil {
		lc.writeError(c, err)
		return
	}
	name := "loan_" + l.ID + ".pdf"
	if lc.Slips != nil {
		if path := export.SlipPath(lc.Slips.SlipDir(wid), l.ID); fileExists(path) {
			c.FileAttachment(path, name)
			return
		}
	}
	pdf, err := export.BorrowSlipPDF(export.SlipFromLoan(l, lc.Cfg.Files.ImageDir))
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// QR renders the return token of a loan. GET /loans/:loanId/qr
func (lc *LoanController) QR(c *gin.Context) {
	l, err := lc.Loans.FindLoan(c.Request.Context(), app.Warehouse(c).ID, c.Param("loanId"))
	if err != nil {
		lc.writeError(c, err)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	png, err := export.QRCodePNG(l.ReturnToken, size)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type returnInput struct {
	DeviceIDs []int64             `json:"deviceIds"`
	Items     []ledger.ReturnItem `json:"items"`
}

// Return books devices back in. items carries per-unit quantities, deviceIds
// whole lines, and an empty body returns the entire loan.
// POST /loans/:loanId/return
func (lc *LoanController) Return(c *gin.Context) {
	var in returnInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	ctx, wid, loanID := c.Request.Context(), app.Warehouse(c).ID, c.Param("loanId")
	by := app.UserName(c)

	var (
		res *ledger.ReturnResult
		err error
	)
	switch {
	case len(in.Items) > 0:
		res, err = lc.Ledger.ReturnUnits(ctx, wid, loanID, in.Items, by)
	case len(in.DeviceIDs) > 0:
		res, err = lc.Ledger.ReturnLines(ctx, wid, loanID, in.DeviceIDs, by)
	default:
		var l *models.Loan
		if l, err = lc.Loans.FindLoan(ctx, wid, loanID); err == nil {
			res, err = lc.Ledger.ReturnLines(ctx, wid, loanID, lineDevices(l), by)
		}
	}
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func lineDevices(l *models.Loan) []int64 {
	ids := make([]int64, 0, len(l.Lines))
	for _, ln := range l.Lines {
		ids = append(ids, ln.DeviceID)
	}
	return ids
}

// Lookup finds the loans a return scan refers to. Personal warehouses print
// a return token on the slip; organization warehouses scan the device.
// GET /returns/lookup?code=
func (lc *LoanController) Lookup(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		badRequest(c, "code is required")
		return
	}
	ctx, w := c.Request.Context(), app.Warehouse(c)
	var loans []models.Loan
	if w.Mode == models.ModePersonal {
		l, err := lc.Repo.FindActiveLoanByToken(ctx, w.ID, code)
		if err != nil {
			lc.writeError(c, err)
			return
		}
		loans = []models.Loan{*l}
	} else {
		var err error
		if loans, err = lc.Repo.FindActiveLoansByScanCode(ctx, w.ID, code); err != nil {
			lc.writeError(c, err)
			return
		}
		if len(loans) == 0 {
			c.JSON(http.StatusNotFound, app.H{"error": "no active loan for " + code})
			return
		}
	}
	c.JSON(http.StatusOK, app.H{"items": loans})
}

// GET /returns/mine
func (lc *LoanController) Mine(c *gin.Context) {
	ls, err := lc.Repo.ListActiveLoansForBorrower(c.Request.Context(), app.Warehouse(c).ID, app.UserID(c))
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": ls})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
