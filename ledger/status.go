package ledger

import (
	"sort"
	"strconv"
	"strings"
)

type StatusKind int

const (
	StatusAvailable StatusKind = iota
	StatusDefective
	StatusBorrowed
)

// Legacy renderings stored in the device status column.
const (
	AvailableText = "available"
	DefectiveText = "defective"
)

// BorrowerQuantity is one borrower's summed quantity of a device on active loans.
type BorrowerQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Status struct {
	Kind      StatusKind         `json:"kind"`
	Borrowers []BorrowerQuantity `json:"borrowers,omitempty"`
}

// DeriveStatus folds active loan rows into a Status. Rows may repeat a borrower
// and come in any order; the result is grouped and sorted by name.
func DeriveStatus(defective bool, rows []BorrowerQuantity) Status {
	if defective {
		return Status{Kind: StatusDefective}
	}
	sums := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.Quantity <= 0 {
			continue
		}
		sums[r.Name] += r.Quantity
	}
	if len(sums) == 0 {
		return Status{Kind: StatusAvailable}
	}
	out := make([]BorrowerQuantity, 0, len(sums))
	for name, q := range sums {
		out = append(out, BorrowerQuantity{Name: name, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return Status{Kind: StatusBorrowed, Borrowers: out}
}

// String renders the legacy status text, e.g. "Alice (2), Bob (2)".
func (s Status) String() string {
	switch s.Kind {
	case StatusDefective:
		return DefectiveText
	case StatusBorrowed:
		parts := make([]string, 0, len(s.Borrowers))
		for _, b := range s.Borrowers {
			parts = append(parts, b.Name+" ("+strconv.Itoa(b.Quantity)+")")
		}
		return strings.Join(parts, ", ")
	default:
		return AvailableText
	}
}

func (k StatusKind) String() string {
	switch k {
	case StatusDefective:
		return "defective"
	case StatusBorrowed:
		return "borrowed"
	default:
		return "available"
	}
}

func (k StatusKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
