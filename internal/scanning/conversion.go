package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// pdfToImage renders the first page of a PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	// Fuel receipts are single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// heicToPNG decodes an iPhone HEIC/HEIF photo and re-encodes it as PNG
func heicToPNG(imageData []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks the ftyp box brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// decodableFormats are the formats with a registered standard library decoder
var decodableFormats = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

// isDecodableFormat reports whether the bytes or the declared type name a format
// that can be checked with image.DecodeConfig
func isDecodableFormat(data []byte, mimeType string) bool {
	if decodableFormats[mimeType] {
		return true
	}
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return true
	case bytes.HasPrefix(data, []byte("GIF8")):
		return true
	}
	return false
}

// normalizeImage prepares image bytes for the recognition service. HEIC and PDF are
// converted to PNG. JPEG, PNG and GIF are checked for readability. Other formats
// (WebP, BMP, TIFF, ICO) go to the service unchanged.
func normalizeImage(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	switch {
	case mimeType == "application/pdf":
		return pdfToImage(imageData)
	case isHEICFormat(imageData) || isHEICMimeType(mimeType):
		return heicToPNG(imageData)
	case !isDecodableFormat(imageData, mimeType):
		return imageData, nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return imageData, nil
}
