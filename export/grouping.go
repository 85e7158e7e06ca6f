package export

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"
)

type DeviceGroup struct {
	Key  string         `json:"key"`
	Rows []db.DeviceRow `json:"rows"`
}

// GroupDevices buckets rows by model, category, serial (first character),
// status or nothing. Groups are sorted by key, the empty key last. Row order
// within a group is kept.
func GroupDevices(rows []db.DeviceRow, by string) []DeviceGroup {
	keyOf := groupKey(by)
	if keyOf == nil {
		return []DeviceGroup{{Key: "", Rows: rows}}
	}

	idx := map[string]int{}
	var groups []DeviceGroup
	for _, r := range rows {
		k := keyOf(r)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, DeviceGroup{Key: k})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a == "" || b == "" {
			return b == "" && a != ""
		}
		return strings.ToLower(a) < strings.ToLower(b)
	})
	return groups
}

func groupKey(by string) func(db.DeviceRow) string {
	switch by {
	case "model":
		return func(r db.DeviceRow) string { return strings.TrimSpace(r.Model) }
	case "category":
		return func(r db.DeviceRow) string { return strings.TrimSpace(r.Category) }
	case "serial":
		return func(r db.DeviceRow) string {
			for _, c := range strings.TrimSpace(r.SerialNumber) {
				return string(unicode.ToUpper(c))
			}
			return ""
		}
	case "status":
		return func(r db.DeviceRow) string {
			switch {
			case r.Defective:
				return ledger.StatusDefective.String()
			case r.Status == ledger.AvailableText:
				return ledger.StatusAvailable.String()
			default:
				return ledger.StatusBorrowed.String()
			}
		}
	}
	return nil
}
