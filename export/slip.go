package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Matti-Krebelder/DMS/models"

	"github.com/jung-kurt/gofpdf"
)

type SlipLine struct {
	DeviceID     int64
	Name         string
	Model        string
	ScanCode     string
	SerialNumber string
	UnitPrice    float64
	Quantity     int
}

// SlipData is everything printed on a borrow slip.
type SlipData struct {
	LoanID       string
	BorrowerName string
	Email        string
	Group        string
	Destination  string
	ReturnToken  string
	BorrowedAt   time.Time
	Lines        []SlipLine
	// ImageDir holds optional device photos named <deviceID>.jpg|jpeg|png.
	ImageDir string
}

// SlipFromLoan builds slip data from a loan loaded with its lines and devices.
func SlipFromLoan(l *models.Loan, imageDir string) SlipData {
	d := SlipData{
		LoanID:       l.ID,
		BorrowerName: l.BorrowerName,
		Email:        l.BorrowerEmail,
		Group:        l.BorrowerGroup,
		Destination:  l.Destination,
		ReturnToken:  l.ReturnToken,
		BorrowedAt:   l.BorrowedAt,
		ImageDir:     imageDir,
	}
	for _, ln := range l.Lines {
		sl := SlipLine{DeviceID: ln.DeviceID, Name: ln.ScanCode, ScanCode: ln.ScanCode, Quantity: ln.Quantity}
		if ln.Device != nil {
			sl.Name = ln.Device.Name
			sl.Model = ln.Device.Model
			sl.SerialNumber = ln.Device.SerialNumber
			sl.UnitPrice = ln.Device.UnitPrice
		}
		d.Lines = append(d.Lines, sl)
	}
	return d
}

// SlipGroup is one table row: devices sharing a base name.
type SlipGroup struct {
	Name    string
	Model   string
	Count   int
	Total   float64
	Serials []string
	Image   string
}

func (g SlipGroup) UnitPrice() float64 {
	if g.Count == 0 {
		return 0
	}
	return g.Total / float64(g.Count)
}

var trailingDigits = regexp.MustCompile(`^(.*?)\s*\d*$`)

// BaseName strips trailing digits and whitespace: "Tripod 3" -> "Tripod".
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if m := trailingDigits.FindStringSubmatch(name); m != nil {
		if base := strings.TrimSpace(m[1]); base != "" {
			return base
		}
	}
	return name
}

// GroupSlipLines merges lines by base name, sorted by name.
func GroupSlipLines(lines []SlipLine, imageDir string) []SlipGroup {
	idx := map[string]int{}
	var groups []SlipGroup
	for _, ln := range lines {
		base := BaseName(ln.Name)
		i, ok := idx[base]
		if !ok {
			i = len(groups)
			idx[base] = i
			groups = append(groups, SlipGroup{Name: base, Model: ln.Model})
		}
		g := &groups[i]
		g.Count += ln.Quantity
		g.Total += ln.UnitPrice * float64(ln.Quantity)
		sn := ln.SerialNumber
		if sn == "" {
			sn = "N/A"
		}
		g.Serials = append(g.Serials, sn)
		if g.Image == "" {
			g.Image = deviceImage(imageDir, ln.DeviceID)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func deviceImage(dir string, id int64) string {
	if dir == "" {
		return ""
	}
	for _, ext := range []string{".jpg", ".png", ".jpeg"} {
		p := filepath.Join(dir, strconv.FormatInt(id, 10)+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var slipCols = []struct {
	title string
	width float64
	align string
}{
	{"", 22, "L"},
	{"Item", 63, "L"},
	{"S/N", 35, "L"},
	{"Qty", 15, "C"},
	{"Unit price", 25, "R"},
	{"Total", 25, "R"},
}

const (
	slipMargin    = 12.5
	slipPageH     = 297.0
	slipBottom    = 20.0
	slipLineH     = 4.0
	slipImageSize = 18.0
)

// BorrowSlipPDF renders the slip handed to the borrower.
func BorrowSlipPDF(d SlipData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(slipMargin, 20, slipMargin)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(26, 26, 26)
	pdf.CellFormat(0, 12, tr("Borrow slip"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if d.ReturnToken != "" {
		if err := drawQR(pdf, d.ReturnToken, 210-slipMargin-25, 18, 25, 25); err != nil {
			return nil, fmt.Errorf("slip qr: %w", err)
		}
	}

	pdf.SetTextColor(102, 102, 102)
	info := [][2]string{
		{"Loan ID", d.LoanID},
		{"Borrowed by", d.BorrowerName},
		{"Date", d.BorrowedAt.Local().Format("2006-01-02 15:04")},
		{"Email", d.Email},
		{"Group", d.Group},
		{"Destination", d.Destination},
		{"Return code", d.ReturnToken},
	}
	for _, kv := range info {
		if kv[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 5, tr(kv[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetTextColor(51, 51, 51)
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		for _, c := range slipCols {
			pdf.CellFormat(c.width, 10, tr(c.title), "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	var sum float64
	for _, g := range GroupSlipLines(d.Lines, d.ImageDir) {
		h := float64(len(g.Serials))*slipLineH + 4
		if h < 12 {
			h = 12
		}
		if g.Image != "" && h < slipImageSize+4 {
			h = slipImageSize + 4
		}
		if pdf.GetY()+h > slipPageH-slipBottom {
			pdf.AddPage()
			header()
		}

		x, y := slipMargin, pdf.GetY()
		for _, c := range slipCols {
			pdf.Rect(x, y, c.width, h, "D")
			x += c.width
		}

		if g.Image != "" {
			pdf.ImageOptions(g.Image, slipMargin+2, y+2, slipImageSize, slipImageSize, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		}

		x = slipMargin + slipCols[0].width
		pdf.SetXY(x+1, y+2)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(slipCols[1].width-2, 5, tr(g.Name), "", 2, "L", false, 0, "")
		if g.Model != "" {
			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(102, 102, 102)
			pdf.CellFormat(slipCols[1].width-2, 4, tr(g.Model), "", 0, "L", false, 0, "")
			pdf.SetTextColor(51, 51, 51)
		}

		x += slipCols[1].width
		pdf.SetFont("Helvetica", "", 7)
		for i, sn := range g.Serials {
			pdf.SetXY(x+1, y+2+float64(i)*slipLineH)
			pdf.CellFormat(slipCols[2].width-2, slipLineH, tr("S/N: "+sn), "", 0, "L", false, 0, "")
		}

		x += slipCols[2].width
		pdf.SetFont("Helvetica", "", 10)
		cells := []string{strconv.Itoa(g.Count), money(g.UnitPrice()), money(g.Total)}
		for i, txt := range cells {
			c := slipCols[3+i]
			pdf.SetXY(x, y)
			pdf.CellFormat(c.width, h, tr(txt), "", 0, c.align, false, 0, "")
			x += c.width
		}
		pdf.SetXY(slipMargin, y+h)
		sum += g.Total
	}

	y := pdf.GetY()
	pdf.SetLineWidth(0.7)
	pdf.Line(slipMargin, y, 210-slipMargin, y)
	pdf.SetLineWidth(0.2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(slipCols[0].width, 10, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(slipCols[1].width+slipCols[2].width+slipCols[3].width+slipCols[4].width, 10, tr("Sum"), "", 0, "L", false, 0, "")
	pdf.CellFormat(slipCols[5].width, 10, tr(money(sum)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render slip %s: %w", d.LoanID, err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string { return fmt.Sprintf("%.2f €", v) }

// SlipPath is where the archived slip of a loan lives.
func SlipPath(dir, loanID string) string {
	return filepath.Join(dir, "loan_"+loanID+".pdf")
}

// ArchiveSlip writes the slip into dir unless it already exists. It reports
// whether a new file was written.
func ArchiveSlip(dir string, d SlipData) (bool, error) {
	path := SlipPath(dir, d.LoanID)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	b, err := BorrowSlipPDF(d)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
