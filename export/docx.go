package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Matti-Krebelder/DMS/db"

	"github.com/fumiama/go-docx"
)

const priceColumn = 11

// DevicesDocx renders the device list as a Word table with the CSV columns.
func DevicesDocx(title string, rows []db.DeviceRow, at time.Time) ([]byte, error) {
	doc := docx.New().WithDefaultTheme().WithA4Page()

	doc.AddParagraph().AddText(title).Bold().Size("32")
	doc.AddParagraph().AddText(fmt.Sprintf("%s, %d devices", at.Format("2006-01-02 15:04"), len(rows))).Size("18")

	tbl := doc.AddTable(len(rows)+1, len(deviceColumns), 0, nil)
	for i, h := range deviceColumns {
		tbl.TableRows[0].TableCells[i].Shade("clear", "auto", "E7E6E6").
			AddParagraph().AddText(h).Bold().Size("16")
	}
	for r, row := range rows {
		rec := deviceRecord(row)
		rec[priceColumn] = money(row.UnitPrice)
		for i, v := range rec {
			tbl.TableRows[r+1].TableCells[i].AddParagraph().AddText(v).Size("16")
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}
