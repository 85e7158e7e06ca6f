package ledger

import "strings"

// CartEntry is one device staged for the next loan.
type CartEntry struct {
	DeviceID int64  `json:"deviceId"`
	Name     string `json:"name"`
	ScanCode string `json:"scanCode"`
	Model    string `json:"model,omitempty"`
	Quantity int    `json:"quantity"`
	Ceiling  int    `json:"ceiling"`
}

// Cart collects devices before a borrow is committed. It is a plain value:
// callers load it from and save it to their session store.
type Cart struct {
	WarehouseID string      `json:"warehouseId"`
	Entries     []CartEntry `json:"entries"`
}

func NewCart(warehouseID string) *Cart {
	return &Cart{WarehouseID: warehouseID, Entries: []CartEntry{}}
}

func (c *Cart) Entry(deviceID int64) *CartEntry {
	for i := range c.Entries {
		if c.Entries[i].DeviceID == deviceID {
			return &c.Entries[i]
		}
	}
	return nil
}

func (c *Cart) Remove(deviceID int64) bool {
	for i := range c.Entries {
		if c.Entries[i].DeviceID == deviceID {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() { c.Entries = c.Entries[:0] }

func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}

func (c *Cart) TotalUnits() int {
	n := 0
	for _, e := range c.Entries {
		n += e.Quantity
	}
	return n
}

// SplitCodes turns multi-line scanner input into codes, skipping blank lines.
func SplitCodes(input string) []string {
	var codes []string
	for _, line := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			codes = append(codes, s)
		}
	}
	return codes
}
