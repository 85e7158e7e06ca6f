// Package ledger keeps per-device availability consistent across borrows and returns.
package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/Matti-Krebelder/DMS/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tokenAttempts = 20

// Borrower describes who a loan is handed to.
type Borrower struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Group       string `json:"group,omitempty"`
	Destination string `json:"destination,omitempty"`
}

type Ledger struct {
	store Store
	log   *zap.Logger
	locks keyedMutex

	now      func() time.Time
	newID    func() string
	newToken func() (string, error)
}

func New(store Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		newToken: randomToken,
	}
}

// exclusive runs fn in the warehouse's critical section and transaction.
func (l *Ledger) exclusive(ctx context.Context, warehouseID string, fn func(tx Store) error) error {
	unlock := l.locks.lock(warehouseID)
	defer unlock()

	err := l.store.Atomic(ctx, warehouseID, fn)
	if err != nil && !classified(err) {
		return storageErr("transaction", err)
	}
	return err
}

func (l *Ledger) AvailableQuantity(ctx context.Context, warehouseID string, deviceID int64) (int, error) {
	var n int
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		d, err := loadDevice(ctx, tx, warehouseID, deviceID)
		if err != nil {
			return err
		}
		n, err = available(ctx, tx, d)
		return err
	})
	return n, err
}

// AddToCart stages one unit of the device behind scanCode.
func (l *Ledger) AddToCart(ctx context.Context, warehouseID string, cart *Cart, scanCode string) (CartEntry, error) {
	code := strings.TrimSpace(scanCode)
	if code == "" {
		return CartEntry{}, fmt.Errorf("empty scan code: %w", ErrNotFound)
	}

	var (
		dev   *models.Device
		avail int
	)
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		d, err := tx.DeviceByScanCode(ctx, warehouseID, code)
		if err != nil {
			return storageErr("device by scan code", err)
		}
		if d == nil {
			return fmt.Errorf("scan code %q: %w", code, ErrNotFound)
		}
		if d.Defective {
			return fmt.Errorf("%s: %w", d.Name, ErrDefective)
		}
		avail, err = available(ctx, tx, d)
		dev = d
		return err
	})
	if err != nil {
		return CartEntry{}, err
	}
	if avail <= 0 {
		return CartEntry{}, fmt.Errorf("%s: %w", dev.Name, ErrExhausted)
	}

	if cart.WarehouseID == "" {
		cart.WarehouseID = warehouseID
	}
	// A failed add leaves the entry as staged; CommitBorrow reports a stale cart.
	if e := cart.Entry(dev.ID); e != nil {
		if e.Quantity >= avail {
			return *e, fmt.Errorf("%s: %d staged, %d available: %w", dev.Name, e.Quantity, avail, ErrCapReached)
		}
		e.Ceiling = avail
		e.Quantity++
		return *e, nil
	}
	e := CartEntry{
		DeviceID: dev.ID,
		Name:     dev.Name,
		ScanCode: dev.ScanCode,
		Model:    dev.Model,
		Quantity: 1,
		Ceiling:  avail,
	}
	cart.Entries = append(cart.Entries, e)
	return e, nil
}

// ScanResult reports the outcome of one code in a batch.
type ScanResult struct {
	Code  string     `json:"code"`
	Entry *CartEntry `json:"entry,omitempty"`
	Err   error      `json:"-"`
}

type BatchResult struct {
	Results []ScanResult `json:"results"`
}

func (b BatchResult) Added() int {
	n := 0
	for _, r := range b.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func (b BatchResult) Failures() []ScanResult {
	var out []ScanResult
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// AddCodes adds every code independently; one failure never stops the batch.
// A storage failure is the exception and is returned as the error.
func (l *Ledger) AddCodes(ctx context.Context, warehouseID string, cart *Cart, codes []string) (BatchResult, error) {
	res := BatchResult{Results: make([]ScanResult, 0, len(codes))}
	for _, code := range codes {
		e, err := l.AddToCart(ctx, warehouseID, cart, code)
		if err != nil {
			if isStorage(err) {
				return res, err
			}
			res.Results = append(res.Results, ScanResult{Code: code, Err: err})
			continue
		}
		res.Results = append(res.Results, ScanResult{Code: code, Entry: &e})
	}
	return res, nil
}

// CommitBorrow turns the cart into an active loan and clears it.
func (l *Ledger) CommitBorrow(ctx context.Context, warehouseID string, cart *Cart, b Borrower) (*models.Loan, error) {
	if cart.Len() == 0 {
		return nil, ErrEmptyCart
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return nil, ErrInvalidBorrower
	}

	var loan *models.Loan
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		devices := make([]*models.Device, 0, len(cart.Entries))
		for _, e := range cart.Entries {
			if e.Quantity < 1 {
				return fmt.Errorf("%s: %d: %w", e.Name, e.Quantity, ErrInvalidQuantity)
			}
			d, err := loadDevice(ctx, tx, warehouseID, e.DeviceID)
			if err != nil {
				return err
			}
			if d.Defective {
				return fmt.Errorf("%s: %w", d.Name, ErrDefective)
			}
			avail, err := available(ctx, tx, d)
			if err != nil {
				return err
			}
			if e.Quantity > avail {
				return fmt.Errorf("%s: requested %d, %d available: %w", d.Name, e.Quantity, avail, ErrExhausted)
			}
			devices = append(devices, d)
		}

		token, err := l.uniqueToken(ctx, tx, warehouseID)
		if err != nil {
			return err
		}
		loan = &models.Loan{
			ID:            l.newID(),
			WarehouseID:   warehouseID,
			BorrowerID:    b.ID,
			BorrowerName:  b.Name,
			BorrowerEmail: b.Email,
			BorrowerGroup: b.Group,
			Destination:   b.Destination,
			ReturnToken:   token,
			Status:        models.LoanActive,
			BorrowedAt:    l.now(),
		}
		if err := tx.InsertLoan(ctx, loan); err != nil {
			return storageErr("insert loan", err)
		}
		for i, e := range cart.Entries {
			line := models.LoanLine{
				LoanID:   loan.ID,
				DeviceID: e.DeviceID,
				ScanCode: devices[i].ScanCode,
				Quantity: e.Quantity,
			}
			if err := tx.InsertLoanLine(ctx, &line); err != nil {
				return storageErr("insert loan line", err)
			}
			loan.Lines = append(loan.Lines, line)
		}
		for _, d := range devices {
			if _, err := refresh(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("loan committed",
		zap.String("warehouse", warehouseID),
		zap.String("loan", loan.ID),
		zap.String("borrower", loan.BorrowerName),
		zap.Int("lines", len(loan.Lines)))
	cart.Clear()
	return loan, nil
}

// ReturnItem asks to return Quantity units of a device; 0 returns the whole line.
type ReturnItem struct {
	DeviceID int64 `json:"deviceId"`
	Quantity int   `json:"quantity"`
}

type ReturnResult struct {
	LoanID         string            `json:"loanId"`
	Returned       []ReturnItem      `json:"returned"`
	Skipped        []int64           `json:"skipped"`
	RemainingLines int64             `json:"remainingLines"`
	LoanStatus     models.LoanStatus `json:"loanStatus"`
}

// ReturnLines removes whole lines for the given devices.
func (l *Ledger) ReturnLines(ctx context.Context, warehouseID, loanID string, deviceIDs []int64, returnedBy string) (*ReturnResult, error) {
	items := make([]ReturnItem, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		items = append(items, ReturnItem{DeviceID: id})
	}
	return l.ReturnUnits(ctx, warehouseID, loanID, items, returnedBy)
}

// ReturnUnits returns whole lines or part of a line's quantity. Devices that are
// not on the loan are skipped so retried requests stay harmless. The loan is
// marked returned once no lines remain.
func (l *Ledger) ReturnUnits(ctx context.Context, warehouseID, loanID string, items []ReturnItem, returnedBy string) (*ReturnResult, error) {
	for _, it := range items {
		if it.Quantity < 0 {
			return nil, fmt.Errorf("device %d: %d: %w", it.DeviceID, it.Quantity, ErrInvalidQuantity)
		}
	}

	res := &ReturnResult{LoanID: loanID, Returned: []ReturnItem{}, Skipped: []int64{}}
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		loan, err := tx.LoanByID(ctx, warehouseID, loanID)
		if err != nil {
			return storageErr("loan by id", err)
		}
		if loan == nil {
			return fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
		}

		for _, it := range items {
			line, err := tx.LoanLine(ctx, loanID, it.DeviceID)
			if err != nil {
				return storageErr("loan line", err)
			}
			if line == nil {
				res.Skipped = append(res.Skipped, it.DeviceID)
				continue
			}
			qty := it.Quantity
			if qty == 0 || qty >= line.Quantity {
				qty = line.Quantity
				if err := tx.DeleteLoanLine(ctx, line.ID); err != nil {
					return storageErr("delete loan line", err)
				}
			} else if err := tx.UpdateLoanLineQuantity(ctx, line.ID, line.Quantity-qty); err != nil {
				return storageErr("update loan line", err)
			}
			res.Returned = append(res.Returned, ReturnItem{DeviceID: it.DeviceID, Quantity: qty})

			d, err := tx.DeviceByID(ctx, warehouseID, it.DeviceID)
			if err != nil {
				return storageErr("device by id", err)
			}
			if d != nil {
				if _, err := refresh(ctx, tx, d); err != nil {
					return err
				}
			}
		}

		n, err := tx.CountLoanLines(ctx, loanID)
		if err != nil {
			return storageErr("count loan lines", err)
		}
		res.RemainingLines = n
		res.LoanStatus = loan.Status
		if n == 0 && loan.Status == models.LoanActive {
			if err := tx.MarkLoanReturned(ctx, loanID, l.now(), returnedBy); err != nil {
				return storageErr("mark loan returned", err)
			}
			res.LoanStatus = models.LoanReturned
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("loan lines returned",
		zap.String("warehouse", warehouseID),
		zap.String("loan", loanID),
		zap.Int("returned", len(res.Returned)),
		zap.Int("skipped", len(res.Skipped)),
		zap.String("status", string(res.LoanStatus)))
	return res, nil
}

// RefreshStatus recomputes and stores one device's status.
func (l *Ledger) RefreshStatus(ctx context.Context, warehouseID string, deviceID int64) (Status, error) {
	var st Status
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		d, err := loadDevice(ctx, tx, warehouseID, deviceID)
		if err != nil {
			return err
		}
		st, err = refresh(ctx, tx, d)
		return err
	})
	return st, err
}

// DeviceEdit carries the fields an operator changed; nil means unchanged.
type DeviceEdit struct {
	Name            *string
	ScanCode        *string
	Location        *string
	SerialNumber    *string
	Model           *string
	Category        *string
	InventoryNumber *string
	PurchaseDate    *string
	Manufacturer    *string
	UnitPrice       *float64
	StockQuantity   *int
	Defective       *bool
	// Description is prepended to the change log when it differs from the current text.
	Description *string
	Editor      string
}

// EditDevice applies an edit without letting stock drop under what is out on loan.
func (l *Ledger) EditDevice(ctx context.Context, warehouseID string, deviceID int64, e DeviceEdit) (*models.Device, error) {
	var out *models.Device
	err := l.exclusive(ctx, warehouseID, func(tx Store) error {
		d, err := loadDevice(ctx, tx, warehouseID, deviceID)
		if err != nil {
			return err
		}
		if e.ScanCode != nil {
			code := strings.TrimSpace(*e.ScanCode)
			if code == "" {
				return fmt.Errorf("empty scan code: %w", ErrInvalidInput)
			}
			if code != d.ScanCode {
				other, err := tx.DeviceByScanCode(ctx, warehouseID, code)
				if err != nil {
					return storageErr("device by scan code", err)
				}
				if other != nil && other.ID != d.ID {
					return fmt.Errorf("%q: %w", code, ErrScanCodeTaken)
				}
				d.ScanCode = code
			}
		}
		if e.StockQuantity != nil {
			if *e.StockQuantity < 1 {
				return fmt.Errorf("stock %d: %w", *e.StockQuantity, ErrInvalidQuantity)
			}
			loaned, err := tx.LoanedQuantity(ctx, d.ID)
			if err != nil {
				return storageErr("loaned quantity", err)
			}
			if *e.StockQuantity < loaned {
				return fmt.Errorf("stock %d, %d on loan: %w", *e.StockQuantity, loaned, ErrStockBelowLoaned)
			}
			d.StockQuantity = *e.StockQuantity
		}
		if e.UnitPrice != nil {
			if *e.UnitPrice < 0 {
				return fmt.Errorf("price %.2f: %w", *e.UnitPrice, ErrInvalidInput)
			}
			d.UnitPrice = *e.UnitPrice
		}
		setString(&d.Name, e.Name)
		setString(&d.Location, e.Location)
		setString(&d.SerialNumber, e.SerialNumber)
		setString(&d.Model, e.Model)
		setString(&d.Category, e.Category)
		setString(&d.InventoryNumber, e.InventoryNumber)
		setString(&d.PurchaseDate, e.PurchaseDate)
		setString(&d.Manufacturer, e.Manufacturer)
		if e.Defective != nil {
			d.Defective = *e.Defective
		}
		if e.Description != nil {
			d.Description = AppendLogEntry(d.Description, *e.Description, e.Editor, l.now())
		}
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("empty name: %w", ErrInvalidInput)
		}

		rows, err := tx.ActiveBorrowers(ctx, d.ID)
		if err != nil {
			return storageErr("active borrowers", err)
		}
		d.Status = DeriveStatus(d.Defective, rows).String()
		if err := tx.SaveDevice(ctx, d); err != nil {
			return storageErr("save device", err)
		}
		out = d
		return nil
	})
	return out, err
}

// AppendLogEntry prepends a stamped entry to a description change log.
func AppendLogEntry(current, text, editor string, at time.Time) string {
	text = strings.TrimSpace(text)
	if text == "" || text == current {
		return current
	}
	entry := fmt.Sprintf("[%s - %s] %s", at.Format("2006-01-02 15:04:05"), editor, text)
	if current == "" {
		return entry
	}
	return entry + "\n\n" + current
}

// LogEntries splits a change log into its entries, newest first.
func LogEntries(description string) []string {
	var out []string
	for _, e := range strings.Split(description, "\n\n") {
		if s := strings.TrimSpace(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func loadDevice(ctx context.Context, tx Store, warehouseID string, id int64) (*models.Device, error) {
	d, err := tx.DeviceByID(ctx, warehouseID, id)
	if err != nil {
		return nil, storageErr("device by id", err)
	}
	if d == nil {
		return nil, fmt.Errorf("device %d: %w", id, ErrNotFound)
	}
	return d, nil
}

func available(ctx context.Context, tx Store, d *models.Device) (int, error) {
	loaned, err := tx.LoanedQuantity(ctx, d.ID)
	if err != nil {
		return 0, storageErr("loaned quantity", err)
	}
	if n := d.StockQuantity - loaned; n > 0 {
		return n, nil
	}
	return 0, nil
}

func refresh(ctx context.Context, tx Store, d *models.Device) (Status, error) {
	rows, err := tx.ActiveBorrowers(ctx, d.ID)
	if err != nil {
		return Status{}, storageErr("active borrowers", err)
	}
	st := DeriveStatus(d.Defective, rows)
	if s := st.String(); s != d.Status {
		if err := tx.UpdateDeviceStatus(ctx, d.ID, s); err != nil {
			return Status{}, storageErr("update device status", err)
		}
		d.Status = s
	}
	return st, nil
}

func (l *Ledger) uniqueToken(ctx context.Context, tx Store, warehouseID string) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		t, err := l.newToken()
		if err != nil {
			return "", storageErr("return token", err)
		}
		used, err := tx.ReturnTokenInUse(ctx, warehouseID, t)
		if err != nil {
			return "", storageErr("return token lookup", err)
		}
		if !used {
			return t, nil
		}
	}
	return "", storageErr("return token", fmt.Errorf("no free token after %d attempts", tokenAttempts))
}

func randomToken() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func isStorage(err error) bool { return errors.Is(err, ErrStorage) }

type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	m, ok := k.m[key]
	if !ok {
		m = &sync.Mutex{}
		k.m[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
