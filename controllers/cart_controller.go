package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartController struct{ *Srv }

func NewCartController(s *Srv) *CartController { return &CartController{Srv: s} }

func (cc *CartController) load(c *gin.Context) (*ledger.Cart, bool) {
	cart, err := cc.Carts.Load(c.Request.Context(), app.SessionID(c), app.Warehouse(c).ID)
	if err != nil {
		cc.writeError(c, err)
		return nil, false
	}
	return cart, true
}

func (cc *CartController) save(c *gin.Context, cart *ledger.Cart) bool {
	if err := cc.Carts.Save(c.Request.Context(), app.SessionID(c), cart); err != nil {
		cc.writeError(c, err)
		return false
	}
	return true
}

// GET /cart
func (cc *CartController) Get(c *gin.Context) {
	cart, ok := cc.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app.H{"cart": cart, "units": cart.TotalUnits()})
}

type scanView struct {
	Code  string            `json:"code"`
	Entry *ledger.CartEntry `json:"entry,omitempty"`
	Error string            `json:"error,omitempty"`
}

func scanViews(res ledger.BatchResult) []scanView {
	out := make([]scanView, 0, len(res.Results))
	for _, r := range res.Results {
		v := scanView{Code: r.Code, Entry: r.Entry}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// AddItems stages scanned codes, one per line. A single failing code answers
// with its own status so handheld scanners get direct feedback.
// POST /cart/items {"codes": "123456\n654321"}
func (cc *CartController) AddItems(c *gin.Context) {
	var in struct {
		Codes string `json:"codes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	codes := ledger.SplitCodes(in.Codes)
	if len(codes) == 0 {
		badRequest(c, "no scan codes given")
		return
	}
	cart, ok := cc.load(c)
	if !ok {
		return
	}
	res, err := cc.Ledger.AddCodes(c.Request.Context(), app.Warehouse(c).ID, cart, codes)
	if err != nil {
		cc.writeError(c, err)
		return
	}
	if !cc.save(c, cart) {
		return
	}
	if len(codes) == 1 {
		if f := res.Failures(); len(f) == 1 {
			cc.writeError(c, f[0].Err)
			return
		}
	}
	c.JSON(http.StatusOK, app.H{
		"cart":    cart,
		"added":   res.Added(),
		"results": scanViews(res),
	})
}

// DELETE /cart/items/:deviceId
func (cc *CartController) RemoveItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("deviceId"), 10, 64)
	if err != nil {
		badRequest(c, "invalid device id")
		return
	}
	cart, ok := cc.load(c)
	if !ok {
		return
	}
	if !cart.Remove(id) {
		c.JSON(http.StatusNotFound, app.H{"error": "device not in cart"})
		return
	}
	if !cc.save(c, cart) {
		return
	}
	c.JSON(http.StatusOK, app.H{"cart": cart})
}

// DELETE /cart
func (cc *CartController) Clear(c *gin.Context) {
	if err := cc.Carts.Clear(c.Request.Context(), app.SessionID(c), app.Warehouse(c).ID); err != nil {
		cc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

type borrowInput struct {
	BorrowerID  string `json:"borrowerId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Group       string `json:"group"`
	Destination string `json:"destination"`
}

// borrowerFor decides who a loan is booked to. Personal warehouses are
// self-service: the acting user borrows. Organization staff name the borrower.
func borrowerFor(w *models.Warehouse, userID, userName string, in borrowInput) ledger.Borrower {
	b := ledger.Borrower{
		ID:          strings.TrimSpace(in.BorrowerID),
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Group:       strings.TrimSpace(in.Group),
		Destination: strings.TrimSpace(in.Destination),
	}
	if w.Mode == models.ModePersonal {
		b.ID = userID
		if b.Name == "" {
			b.Name = userName
		}
	}
	return b
}

// Borrow commits the cart as a loan and archives its slip.
// POST /borrow
func (cc *CartController) Borrow(c *gin.Context) {
	var in borrowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx, w := c.Request.Context(), app.Warehouse(c)
	cart, ok := cc.load(c)
	if !ok {
		return
	}
	loan, err := cc.Ledger.CommitBorrow(ctx, w.ID, cart, borrowerFor(w, app.UserID(c), app.UserName(c), in))
	if err != nil {
		cc.writeError(c, err)
		return
	}
	if !cc.save(c, cart) {
		return
	}

	if full, err := cc.Loans.FindLoan(ctx, w.ID, loan.ID); err == nil {
		loan = full
		if cc.Slips != nil {
			if _, err := export.ArchiveSlip(cc.Slips.SlipDir(w.ID), export.SlipFromLoan(full, cc.Cfg.Files.ImageDir)); err != nil {
				cc.Log.Warn("archive slip", zap.String("loan", loan.ID), zap.Error(err))
			}
		}
	} else {
		cc.Log.Warn("reload loan", zap.String("loan", loan.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, app.H{"loan": loan, "returnToken": loan.ReturnToken})
}
