package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmeshcher/backoffice-system/internal/model"
)

// importEchoHandler имитирует обработчик импорта: читает JSON-тело
// запроса и отвечает итогом импорта в JSON.
func importEchoHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	summary := model.ImportSummary{
		Imported: 2,
		Updated:  1,
		Skipped:  1,
		Issues:   []model.ImportIssue{{GroupKey: req.Login, Reason: "invalid vendor"}},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(summary)
}

func gzipBody(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware_CompressesSummaryResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", strings.NewReader(`{"login":"#1001"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(importEchoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ce := res.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("content-encoding = %q, want gzip", ce)
	}

	zr, err := gzip.NewReader(res.Body)
	if err != nil {
		t.Fatalf("new gzip reader: %v", err)
	}
	defer zr.Close()

	var summary model.ImportSummary
	if err := json.NewDecoder(zr).Decode(&summary); err != nil {
		t.Fatalf("decode compressed summary: %v", err)
	}
	if summary.Imported != 2 || summary.Updated != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary after round-trip: %+v", summary)
	}
	if len(summary.Issues) != 1 || summary.Issues[0].GroupKey != "#1001" {
		t.Fatalf("issues lost in compression round-trip: %+v", summary.Issues)
	}
}

func TestGzipMiddleware_PlainClientGetsPlainResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", strings.NewReader(`{"login":"#1001"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(importEchoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if ce := res.Header.Get("Content-Encoding"); ce != "" {
		t.Fatalf("content-encoding = %q, want empty", ce)
	}

	var summary model.ImportSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode plain summary: %v", err)
	}
	if summary.Imported != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestGzipMiddleware_DecompressesRequestBody(t *testing.T) {
	body := gzipBody(t, `{"login":"compressed@x.com"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", body)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(importEchoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var summary model.ImportSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Issues) != 1 || summary.Issues[0].GroupKey != "compressed@x.com" {
		t.Fatalf("compressed request body was not decoded: %+v", summary.Issues)
	}
}

func TestGzipMiddleware_RejectsBrokenCompressedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err == nil {
			t.Fatalf("handler must not receive a readable body")
		}
	})).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}