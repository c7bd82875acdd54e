package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pixelbatch/internal/artifacts"
	"pixelbatch/internal/domain"
)

func TestFailMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
		wantMsg  string
	}{
		{"validation", domain.NewValidationError("wildcard", "Name and content are required"), http.StatusBadRequest, "validation", "Name and content are required"},
		{"not found", fmt.Errorf("wildcard %q: %w", "x", domain.ErrNotFound), http.StatusNotFound, "not_found", ""},
		{"running", domain.ErrAlreadyRunning, http.StatusConflict, "already_running", ""},
		{"empty export", artifacts.ErrEmpty, http.StatusNotFound, "empty", "no images to export"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal", "disk on fire"},
	}
	app := &App{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.fail(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), tt.err)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantTag {
				t.Fatalf("code = %q, want %q", body["code"], tt.wantTag)
			}
			if tt.wantMsg != "" && body["error"] != tt.wantMsg {
				t.Fatalf("error = %q, want %q", body["error"], tt.wantMsg)
			}
		})
	}
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	app := &App{}
	for name, body := range map[string]string{"empty": "", "truncated": `{"active":`} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			var dst setActiveRequest
			ok := app.decode(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), &dst)
			if ok || rec.Code != http.StatusBadRequest {
				t.Fatalf("ok=%v status=%d", ok, rec.Code)
			}
		})
	}
}
