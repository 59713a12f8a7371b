package e2e

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"segd/internal/httpapi"
	"segd/internal/manager"
	"segd/internal/registry"
	"segd/internal/sam"
	"segd/internal/sam/samtest"
)

// objectRect is the single object painted into the test image.
var objectRect = image.Rect(8, 8, 24, 20)

// createWeightsDir lays out <dir>/<id>/{image_encoder,mask_decoder}.onnx
// for each id, the shape registry.LoadDir discovers.
func createWeightsDir(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		md := filepath.Join(dir, id)
		if err := os.MkdirAll(md, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", md, err)
		}
		for _, f := range []string{"image_encoder.onnx", "mask_decoder.onnx"} {
			if err := os.WriteFile(filepath.Join(md, f), nil, 0o644); err != nil {
				t.Fatalf("write %s: %v", f, err)
			}
		}
	}
	return dir
}

func writeImage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "plate.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, samtest.Scene(64, 48, objectRect)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return p
}

type server struct {
	*httptest.Server
	mgr    *manager.Manager
	models map[string]*samtest.Model
}

// newServer scans a fresh weights dir with the given model ids and serves
// the full mux over fake models.
func newServer(t *testing.T, cfg manager.ManagerConfig, ids ...string) *server {
	t.Helper()
	reg, err := registry.LoadDir(createWeightsDir(t, ids...))
	if err != nil {
		t.Fatalf("scan weights: %v", err)
	}
	models := make(map[string]*samtest.Model, len(ids))
	for _, m := range reg {
		models[m.ID] = samtest.NewModel(m.ID, sam.Family(m.Family))
	}
	cfg.Registry = reg
	cfg.Opener = samtest.Opener(models)
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return &server{Server: srv, mgr: mgr, models: models}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
