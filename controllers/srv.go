package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"
	"github.com/Matti-Krebelder/DMS/session"
	"github.com/Matti-Krebelder/DMS/updates"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlipArchiver writes borrow slips to disk; implemented by the scheduler.
type SlipArchiver interface {
	ArchiveWarehouse(ctx context.Context, warehouseID string) (int, error)
	SlipDir(warehouseID string) string
	ZipWarehouse(ctx context.Context, warehouseID string, w io.Writer) (int, error)
}

// CartStore keeps borrow carts between requests (session.CartStore).
type CartStore interface {
	Load(ctx context.Context, sessionID, warehouseID string) (*ledger.Cart, error)
	Save(ctx context.Context, sessionID string, c *ledger.Cart) error
	Clear(ctx context.Context, sessionID, warehouseID string) error
}

// LoanReader loads a loan with its lines and devices (db.Repo).
type LoanReader interface {
	FindLoan(ctx context.Context, warehouseID, loanID string) (*models.Loan, error)
}

// Srv bundles what the handlers need.
type Srv struct {
	Repo      *db.Repo
	Loans     LoanReader
	Ledger    *ledger.Ledger
	AppSess   *session.AppSessionStore
	Carts     CartStore
	Updates   *updates.Checker
	Slips     SlipArchiver
	Cfg       *config.Config
	Log       *zap.Logger
	WebOrigin string
}

func GetSrv(a *app.App, slips SlipArchiver) *Srv {
	return &Srv{
		Repo:      a.Repo,
		Loans:     a.Repo,
		Ledger:    a.Ledger,
		AppSess:   a.AppSessions(),
		Carts:     a.Carts(),
		Updates:   a.Updates,
		Slips:     slips,
		Cfg:       a.Config,
		Log:       a.Log.Named("http"),
		WebOrigin: a.Config.Server.WebOrigin,
	}
}

func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

// issueSession creates the redis session, records the login and sets the cookie.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID, ip, ua string) (string, error) {
	if err := s.Repo.TouchUserLogin(ctx, userID, ip, ua); err != nil {
		s.Log.Warn("record login", zap.String("user", userID), zap.Error(err))
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, userID, ip); err != nil {
		return "", err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return id, nil
}
