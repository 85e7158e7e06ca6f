package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Matti-Krebelder/DMS/db"
)

// deviceColumns is shared by the CSV and the document export.
var deviceColumns = []string{
	"Name", "Scan code", "Location", "Status", "Description", "Serial number",
	"Model", "Manufacturer", "Category", "Inventory number", "Purchase date", "Price",
	"Borrower", "Destination", "Borrowed at", "Email", "Group",
}

func deviceRecord(r db.DeviceRow) []string {
	borrowedAt := ""
	if r.LastBorrowedAt != nil {
		borrowedAt = r.LastBorrowedAt.Format("2006-01-02 15:04")
	}
	return []string{
		r.Name, r.ScanCode, r.Location, r.Status, r.Description, r.SerialNumber,
		r.Model, r.Manufacturer, r.Category, r.InventoryNumber, r.PurchaseDate,
		strconv.FormatFloat(r.UnitPrice, 'f', 2, 64),
		r.Borrowers, r.Destinations, borrowedAt, r.BorrowerEmails, r.BorrowerGroups,
	}
}

// WriteDevicesCSV writes one row per device, including who currently holds it.
func WriteDevicesCSV(w io.Writer, rows []db.DeviceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(deviceColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(deviceRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
