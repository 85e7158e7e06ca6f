package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Matti-Krebelder/DMS/db"

	"github.com/jung-kurt/gofpdf"
)

const (
	// The label editor positions fields in CSS pixels.
	pxToMM      = 0.75 * 25.4 / 72
	ptToMM      = 25.4 / 72
	labelMargin = 5.0
	a4W, a4H    = 210.0, 297.0
	minFontSize = 6
	maxFontSize = 24
)

// FontSize accepts 12, 12.5 or "12px".
type FontSize int

var digits = regexp.MustCompile(`\d+`)

func (f *FontSize) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FontSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("fontSize: %w", err)
	}
	*f = 12
	if m := digits.FindString(s); m != "" {
		v, _ := strconv.Atoi(m)
		*f = FontSize(v)
	}
	return nil
}

type LabelField struct {
	Type       string   `json:"type"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	FontSize   FontSize `json:"fontSize"`
	FontWeight string   `json:"fontWeight"`
	TextAlign  string   `json:"textAlign"`
	Text       string   `json:"text"`
}

// LabelLayout is the stored label design. Sizes are millimetres.
type LabelLayout struct {
	LabelWidth  float64      `json:"labelWidth"`
	LabelHeight float64      `json:"labelHeight"`
	Fields      []LabelField `json:"fields"`
}

// ParseLayout decodes layout JSON and fills in editor defaults.
func ParseLayout(raw []byte) (LabelLayout, error) {
	var l LabelLayout
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &l); err != nil {
			return l, fmt.Errorf("parse label layout: %w", err)
		}
	}
	if l.LabelWidth <= 0 {
		l.LabelWidth = 50
	}
	if l.LabelHeight <= 0 {
		l.LabelHeight = 30
	}
	for i := range l.Fields {
		f := &l.Fields[i]
		if f.Type == "" {
			f.Type = "text"
		}
		if f.Width <= 0 {
			f.Width = 100
		}
		if f.Height <= 0 {
			f.Height = 20
		}
		if f.FontSize == 0 {
			f.FontSize = 12
		}
		if f.FontSize < minFontSize {
			f.FontSize = minFontSize
		}
		if f.FontSize > maxFontSize {
			f.FontSize = maxFontSize
		}
	}
	return l, nil
}

// PerPage is the number of labels that fit on one A4 sheet.
func (l LabelLayout) PerPage() (cols, rows int) {
	cols = int((a4W - 2*labelMargin) / l.LabelWidth)
	rows = int((a4H - 2*labelMargin) / l.LabelHeight)
	return max(cols, 1), max(rows, 1)
}

// FieldValue resolves a field type against a device. Both the English names
// and the keys written by the older label editor are understood.
func FieldValue(r db.DeviceRow, fieldType string) string {
	switch fieldType {
	case "name":
		return r.Name
	case "barcode", "scanCode":
		return r.ScanCode
	case "location":
		return r.Location
	case "status":
		return r.Status
	case "description", "beschreibung":
		return r.Description
	case "serial", "seriennummer":
		return r.SerialNumber
	case "model", "modell":
		return r.Model
	case "category", "instrumentenart":
		return r.Category
	case "inventory", "inventarnummer":
		return r.InventoryNumber
	case "purchaseDate", "kaufdatum":
		return r.PurchaseDate
	case "price", "preis":
		return money(r.UnitPrice)
	case "borrower", "borrower_name":
		return r.Borrowers
	case "destination":
		return r.Destinations
	case "borrowDate", "borrow_date":
		if r.LastBorrowedAt != nil {
			return r.LastBorrowedAt.Format("2006-01-02 15:04")
		}
	case "email":
		return r.BorrowerEmails
	case "group", "class":
		return r.BorrowerGroups
	}
	return ""
}

// LabelsPDF prints one label per device on A4 sheets.
func LabelsPDF(layout LabelLayout, rows []db.DeviceRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(2 * ptToMM)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	cols, perCol := layout.PerPage()
	perPage := cols * perCol
	lw, lh := layout.LabelWidth, layout.LabelHeight

	if len(rows) == 0 {
		pdf.AddPage()
	}
	for i, r := range rows {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		slot := i % perPage
		x := labelMargin + float64(slot%cols)*lw
		y := labelMargin + float64(slot/cols)*lh

		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.5 * ptToMM)
		pdf.Rect(x, y, lw, lh, "D")

		for _, f := range layout.Fields {
			fx, fy := x+f.X*pxToMM, y+f.Y*pxToMM
			fw, fh := f.Width*pxToMM, f.Height*pxToMM

			if f.Type == "qr" {
				if r.ScanCode == "" {
					continue
				}
				if err := drawQR(pdf, r.ScanCode, fx, fy, fw, fh); err != nil {
					return nil, fmt.Errorf("label qr %s: %w", r.ScanCode, err)
				}
				continue
			}

			text := FieldValue(r, f.Type)
			if f.Type == "text" {
				text = f.Text
			}
			if text == "" {
				continue
			}
			text = tr(text)

			style := ""
			if f.FontWeight == "bold" {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, float64(f.FontSize))
			pdf.SetFontSize(float64(fitFontSize(pdf, text, fw, int(f.FontSize))))

			pdf.SetXY(fx, fy)
			pdf.CellFormat(fw, fh, text, "", 0, alignCode(f.TextAlign), false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render labels: %w", err)
	}
	return buf.Bytes(), nil
}

// fitFontSize shrinks size until text fits width, never below minFontSize.
func fitFontSize(pdf *gofpdf.Fpdf, text string, width float64, size int) int {
	avail := width - 4*ptToMM
	for ; size > minFontSize; size-- {
		pdf.SetFontSize(float64(size))
		if pdf.GetStringWidth(text) <= avail {
			return size
		}
	}
	return minFontSize
}

func alignCode(a string) string {
	switch a {
	case "center":
		return "CM"
	case "right":
		return "RM"
	}
	return "LM"
}
