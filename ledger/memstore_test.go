package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Matti-Krebelder/DMS/models"
)

// memStore is an in-memory Store with rollback on error.
type memStore struct {
	mu      sync.Mutex
	devices map[int64]models.Device
	loans   map[string]models.Loan
	lines   map[int64]models.LoanLine
	nextID  int64

	failInsertLine bool
}

func newMemStore() *memStore {
	return &memStore{
		devices: map[int64]models.Device{},
		loans:   map[string]models.Loan{},
		lines:   map[int64]models.LoanLine{},
	}
}

func (s *memStore) addDevice(warehouseID, name, code string, stock int) models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d := models.Device{
		ID:            s.nextID,
		WarehouseID:   warehouseID,
		Name:          name,
		ScanCode:      code,
		StockQuantity: stock,
		Status:        AvailableText,
	}
	s.devices[d.ID] = d
	return d
}

func (s *memStore) device(id int64) models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[id]
}

func (s *memStore) loan(id string) models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loans[id]
}

type memSnapshot struct {
	devices map[int64]models.Device
	loans   map[string]models.Loan
	lines   map[int64]models.LoanLine
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		devices: make(map[int64]models.Device, len(s.devices)),
		loans:   make(map[string]models.Loan, len(s.loans)),
		lines:   make(map[int64]models.LoanLine, len(s.lines)),
	}
	for k, v := range s.devices {
		snap.devices[k] = v
	}
	for k, v := range s.loans {
		snap.loans[k] = v
	}
	for k, v := range s.lines {
		snap.lines[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices, s.loans, s.lines = snap.devices, snap.loans, snap.lines
}

func (s *memStore) Atomic(ctx context.Context, warehouseID string, fn func(tx Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) DeviceByID(ctx context.Context, warehouseID string, id int64) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok || d.WarehouseID != warehouseID {
		return nil, nil
	}
	return &d, nil
}

func (s *memStore) DeviceByScanCode(ctx context.Context, warehouseID, code string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.WarehouseID == warehouseID && d.ScanCode == code {
			return &d, nil
		}
	}
	return nil, nil
}

func (s *memStore) SaveDevice(ctx context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = *d
	return nil
}

func (s *memStore) UpdateDeviceStatus(ctx context.Context, deviceID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devices[deviceID]
	d.Status = status
	s.devices[deviceID] = d
	return nil
}

func (s *memStore) LoanedQuantity(ctx context.Context, deviceID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l.DeviceID == deviceID && s.loans[l.LoanID].Status == models.LoanActive {
			n += l.Quantity
		}
	}
	return n, nil
}

func (s *memStore) ActiveBorrowers(ctx context.Context, deviceID int64) ([]BorrowerQuantity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []BorrowerQuantity
	for _, l := range s.lines {
		loan := s.loans[l.LoanID]
		if l.DeviceID == deviceID && loan.Status == models.LoanActive {
			rows = append(rows, BorrowerQuantity{Name: loan.BorrowerName, Quantity: l.Quantity})
		}
	}
	return rows, nil
}

func (s *memStore) LoanByID(ctx context.Context, warehouseID, loanID string) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok || l.WarehouseID != warehouseID {
		return nil, nil
	}
	return &l, nil
}

func (s *memStore) ReturnTokenInUse(ctx context.Context, warehouseID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.loans {
		if l.WarehouseID == warehouseID && l.ReturnToken == token && l.Status == models.LoanActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InsertLoan(ctx context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.loans[loan.ID]; dup {
		return errors.New("duplicate loan id")
	}
	cp := *loan
	cp.Lines = nil
	s.loans[loan.ID] = cp
	return nil
}

func (s *memStore) MarkLoanReturned(ctx context.Context, loanID string, at time.Time, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.loans[loanID]
	l.Status = models.LoanReturned
	l.ReturnedAt = &at
	l.ReturnedBy = &by
	s.loans[loanID] = l
	return nil
}

func (s *memStore) LoanLine(ctx context.Context, loanID string, deviceID int64) (*models.LoanLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.LoanID == loanID && l.DeviceID == deviceID {
			return &l, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertLoanLine(ctx context.Context, line *models.LoanLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertLine {
		return errors.New("disk full")
	}
	s.nextID++
	line.ID = s.nextID
	s.lines[line.ID] = *line
	return nil
}

func (s *memStore) UpdateLoanLineQuantity(ctx context.Context, lineID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lines[lineID]
	l.Quantity = quantity
	s.lines[lineID] = l
	return nil
}

func (s *memStore) DeleteLoanLine(ctx context.Context, lineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, lineID)
	return nil
}

func (s *memStore) CountLoanLines(ctx context.Context, loanID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.lines {
		if l.LoanID == loanID {
			n++
		}
	}
	return n, nil
}
