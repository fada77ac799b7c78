package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// Result is the text extracted from one image. Found is false when the image holds no
// readable text.
type Result struct {
	Text  string
	Found bool
}

// Recognizer is the OCR collaborator.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// NewResult trims text and marks the result found when anything remains.
func NewResult(text string) Result {
	text = strings.TrimSpace(text)
	return Result{Text: text, Found: text != ""}
}

var errEmptyImage = errors.New("image is empty")

// DecodeImage decodes a base64 image, accepting an optional data URI prefix.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 || !strings.Contains(encoded[:idx], ";base64") {
			return nil, errors.New("invalid data URI")
		}
		encoded = encoded[idx+1:]
	}
	if encoded == "" {
		return nil, errEmptyImage
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	return data, nil
}
