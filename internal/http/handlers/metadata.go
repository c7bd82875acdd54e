package handlers

import (
	"errors"
	"io"
	"net/http"

	"pixelbatch/internal/pngmeta"
)

const maxImageBody = 32 << 20

// DecodeMetadata reads a raw PNG body and returns its embedded metadata.
// Malformed images still answer 200 with the partial result and an error key.
func (a *App) DecodeMetadata(w http.ResponseWriter, r *http.Request) {
	img, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds the upload limit")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_body", "could not read image body")
		return
	}
	if len(img) == 0 {
		a.error(w, http.StatusBadRequest, "invalid_body", "image body is required")
		return
	}
	a.json(w, http.StatusOK, pngmeta.Decode(img).Map())
}
