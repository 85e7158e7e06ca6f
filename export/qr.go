package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

const (
	qrDefaultSize = 256
	qrMinSize     = 64
	qrMaxSize     = 1024
)

// QRSize clamps a requested edge length to what QRCodePNG renders.
func QRSize(size int) int {
	switch {
	case size <= 0:
		return qrDefaultSize
	case size < qrMinSize:
		return qrMinSize
	case size > qrMaxSize:
		return qrMaxSize
	}
	return size
}

// QRCodePNG renders content as a square PNG, size clamped by QRSize.
func QRCodePNG(content string, size int) ([]byte, error) {
	size = QRSize(size)
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr %q: %w", content, err)
	}
	return png, nil
}

// drawQR places a QR code for content on the current page, registering the
// image once per document.
func drawQR(pdf *gofpdf.Fpdf, content string, x, y, w, h float64) error {
	name := "qr_" + content
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	if info := pdf.GetImageInfo(name); info == nil {
		png, err := qrcode.Encode(content, qrcode.Low, 256)
		if err != nil {
			return err
		}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
		if err := pdf.Error(); err != nil {
			return err
		}
	}
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return nil
}
