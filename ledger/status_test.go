package ledger

import (
	"encoding/json"
	"testing"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name      string
		defective bool
		rows      []BorrowerQuantity
		want      string
		kind      StatusKind
	}{
		{"no loans", false, nil, "available", StatusAvailable},
		{"defective wins", true, []BorrowerQuantity{{"Alice", 1}}, "defective", StatusDefective},
		{"single", false, []BorrowerQuantity{{"Alice", 2}}, "Alice (2)", StatusBorrowed},
		{"sorted", false, []BorrowerQuantity{{"Bob", 2}, {"Alice", 2}}, "Alice (2), Bob (2)", StatusBorrowed},
		{"grouped", false, []BorrowerQuantity{{"Bob", 1}, {"Alice", 1}, {"Bob", 2}}, "Alice (1), Bob (3)", StatusBorrowed},
		{"zero rows ignored", false, []BorrowerQuantity{{"Alice", 0}}, "available", StatusAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := DeriveStatus(tc.defective, tc.rows)
			if st.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", st.Kind, tc.kind)
			}
			if got := st.String(); got != tc.want {
				t.Fatalf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeriveStatusIgnoresRowOrder(t *testing.T) {
	rows := []BorrowerQuantity{{"Zoe", 1}, {"Alice", 3}, {"Mia", 2}, {"Alice", 1}}
	want := DeriveStatus(false, rows).String()
	for i := 0; i < len(rows); i++ {
		rotated := append(append([]BorrowerQuantity{}, rows[i:]...), rows[:i]...)
		if got := DeriveStatus(false, rotated).String(); got != want {
			t.Fatalf("rotation %d: %q != %q", i, got, want)
		}
	}
	if want != "Alice (4), Mia (2), Zoe (1)" {
		t.Fatalf("unexpected rendering %q", want)
	}
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(DeriveStatus(false, []BorrowerQuantity{{"Alice", 2}}))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"kind":"borrowed","borrowers":[{"name":"Alice","quantity":2}]}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestCartHelpers(t *testing.T) {
	c := NewCart("w")
	c.Entries = append(c.Entries, CartEntry{DeviceID: 1, Quantity: 2}, CartEntry{DeviceID: 2, Quantity: 1})
	if c.TotalUnits() != 3 || c.Len() != 2 {
		t.Fatalf("unexpected totals %d/%d", c.TotalUnits(), c.Len())
	}
	if !c.Remove(1) || c.Remove(1) || c.Entry(2) == nil {
		t.Fatal("remove misbehaved")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("clear left entries")
	}
	var nilCart *Cart
	if nilCart.Len() != 0 {
		t.Fatal("nil cart length")
	}

	codes := SplitCodes("A\r\n\n  B  \nA\n")
	if len(codes) != 3 || codes[0] != "A" || codes[1] != "B" || codes[2] != "A" {
		t.Fatalf("SplitCodes = %q", codes)
	}
}
