package scanning

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
)

var dataURIPrefix = []byte("data:")

// EncodeImage reads an image and returns its base64 form for embedding in a JSON
// request body. Data URIs have their "data:<mime>;base64," prefix stripped.
func EncodeImage(r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading image: %v", ErrEncodeImage, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrEncodeImage)
	}

	if payload, ok := stripDataURI(data); ok {
		return payload, nil
	}

	normalized, err := normalizeImage(data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeImage, err)
	}
	return base64.StdEncoding.EncodeToString(normalized), nil
}

func stripDataURI(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, dataURIPrefix) {
		return "", false
	}
	comma := bytes.IndexByte(data, ',')
	if comma == -1 || !bytes.Contains(data[:comma], []byte(";base64")) {
		return "", false
	}
	return string(bytes.TrimSpace(data[comma+1:])), true
}
