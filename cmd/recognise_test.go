package cmd

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/config"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 40, 40))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestRecogniseFile(t *testing.T) {
	var extensions []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		extensions = append(extensions, filepath.Ext(header.Filename))
		w.Write([]byte(`{"assummed_new":true,"uid":"n1"}`))
	}))
	defer server.Close()

	client, err := backend.NewFromToken(server.URL, "op-token")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg := &config.Config{
		Capture:    config.CaptureConfig{JPEGQuality: 80},
		Enrollment: config.EnrollmentConfig{UserAppURL: "http://users.local/"},
	}

	dir := t.TempDir()
	result := recogniseFile(context.Background(), cfg, client, writePNG(t, dir, "frame.png"))

	if result.Error != "" {
		t.Fatalf("unexpected error %s", result.Error)
	}
	if result.Match == nil || !result.Match.IsNew || result.Match.Profile.ID != "n1" {
		t.Errorf("unexpected match %+v", result.Match)
	}
	if result.EnrollmentURL != "http://users.local/register/?uid=n1" {
		t.Errorf("unexpected enrollment URL %s", result.EnrollmentURL)
	}
	if len(extensions) != 1 || extensions[0] != ".jpg" {
		t.Errorf("expected a JPEG upload, got %v", extensions)
	}
}

func TestRecogniseFile_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := backend.NewFromToken(server.URL, "op-token")
	cfg := &config.Config{Capture: config.CaptureConfig{JPEGQuality: 80}}
	dir := t.TempDir()

	notImage := filepath.Join(dir, "notes.txt")
	os.WriteFile(notImage, []byte("hello"), 0o600)

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"missing file", filepath.Join(dir, "missing.png"), ""},
		{"not an image", notImage, ""},
		{"backend failure", writePNG(t, dir, "frame.png"), "Face recognition failed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := recogniseFile(context.Background(), cfg, client, tt.path)
			if result.Error == "" {
				t.Fatal("expected an error")
			}
			if tt.expected != "" && result.Error != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result.Error)
			}
			if result.Match != nil {
				t.Error("expected no match")
			}
		})
	}
}
