package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"pixelbatch/internal/pngmeta"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseManifest(t *testing.T) {
	raw := []byte(`
description: "a __color__ knight"
count: 3
seed: 10
width: 32
height: 48
no_background: true
negative_description: blurry
wildcards_dir: ./lists
delay_ms: 500
`)
	m, err := parseManifest(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Template != "a __color__ knight" || m.Count != 3 || m.Seed == nil || *m.Seed != 10 {
		t.Fatalf("batch = %+v", m.BatchRequest)
	}
	if m.Width != 32 || m.Height != 48 || !m.NoBackground || m.NegativeDescription != "blurry" {
		t.Fatalf("params = %+v", m.GenerationParams)
	}
	if m.WildcardsDir != "./lists" || m.DelayMS == nil || *m.DelayMS != 500 {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestParseManifestDefaultsAndErrors(t *testing.T) {
	m, err := parseManifest([]byte("description: cat\n"))
	if err != nil || m.Count != 1 || m.Seed != nil {
		t.Fatalf("defaults = %+v err=%v", m, err)
	}
	if _, err := parseManifest([]byte("delay_ms: -1\n")); err == nil {
		t.Fatalf("expected negative delay error")
	}
	if _, err := parseManifest([]byte("count: [1")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	img := pngmeta.Encode(tinyPNG(t), pngmeta.Metadata{Prompt: "a red cat", Seed: "7"})
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "decode", path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if got["prompt"] != "a red cat" || got["seed"] != "7" {
		t.Fatalf("decoded = %v", got)
	}

	out, err = execute(t, "decode", path, path+".missing")
	if err == nil {
		t.Fatalf("expected error for missing file, got %s", out)
	}
}

func TestRunCommand(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(tinyPNG(t))
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image":{"base64":"data:image/png;base64,` + encoded + `"}}`))
	}))
	defer api.Close()

	dir := t.TempDir()
	lists := filepath.Join(dir, "wildcards")
	if err := os.MkdirAll(lists, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lists, "color.txt"), []byte("red\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lists, "_active.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(dir, "batch.yaml")
	body := "description: a __color__ cat\ncount: 2\nseed: 5\napi_key: test-key\ndelay_ms: 0\nwildcards_dir: " + lists + "\n"
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PIXELLAB_BASE_URL", api.URL)
	outDir := filepath.Join(dir, "out")
	zipPath := filepath.Join(dir, "batch.zip")
	out, err := execute(t, "run", manifest, "--out", outDir, "--zip", zipPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `"completed": 2`) {
		t.Fatalf("report = %s", out)
	}
	if calls.Load() != 2 {
		t.Fatalf("api calls = %d", calls.Load())
	}

	files, err := filepath.Glob(filepath.Join(outDir, "pixelart-64x64-*-1.png"))
	if err != nil || len(files) != 1 {
		t.Fatalf("first output = %v err=%v", files, err)
	}
	img, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	decoded := pngmeta.Decode(img)
	if decoded.Prompt != "a red cat" || decoded.Seed != "5" {
		t.Fatalf("first image metadata = %+v", decoded.Metadata)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Fatalf("zip: %v", err)
	}
}
