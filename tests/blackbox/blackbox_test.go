package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the segd binary")
	}
	binPath := filepath.Join(t.TempDir(), "segd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/segd")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// createWeightsDir lays out one sub-directory per model with empty ONNX files.
func createWeightsDir(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		md := filepath.Join(dir, id)
		if err := os.MkdirAll(md, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
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
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(4, 4, color.Black)
	p := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return p
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin string, args ...string) *serverProc {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, append([]string{"--addr", fmt.Sprintf("127.0.0.1:%d", port), "--log-format", "json"}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	var er struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("error json: %v body=%s", err, string(body))
	}
	return er.Error
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	weights := createWeightsDir(t, "sam2-tiny", "vit_b_lm")
	sp := startServer(t, bin, "--weights-dir", weights)

	resp, body := get(t, sp.base+"/")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("SAM2 Server is running")) {
		t.Fatalf("/ %d %s", resp.StatusCode, string(body))
	}

	resp, body = get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var modelsResp struct {
		Models []struct {
			ID     string `json:"id"`
			Family string `json:"family"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	if len(modelsResp.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(modelsResp.Models))
	}

	// /readyz initially 503
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz initial %d %s", resp.StatusCode, string(body))
	}

	resp, body = postJSON(t, sp.base+"/auto_segment", []byte(`{"image_path":"/no/such/image.png"}`))
	if resp.StatusCode != http.StatusBadRequest || errorOf(t, body) != "Invalid image path" {
		t.Fatalf("missing image: %d %s", resp.StatusCode, string(body))
	}

	// Default builds carry no ONNX Runtime, so segmentation reports 503.
	payload := fmt.Sprintf(`{"image_path":%q,"box_coords":[1,1,8,8]}`, writeImage(t))
	resp, body = postJSON(t, sp.base+"/box_segment", []byte(payload))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without runtime, got %d %s", resp.StatusCode, string(body))
	}

	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var st struct {
		Device string `json:"device"`
		Cache  struct {
			Capacity int `json:"capacity"`
		} `json:"cache"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v", err)
	}
	if st.Cache.Capacity != 1 || st.Device == "" {
		t.Fatalf("unexpected status: %s", string(body))
	}
}

func TestBlackbox_ModelNotFound_404(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, "--weights-dir", createWeightsDir(t, "sam2-tiny"))

	payload := fmt.Sprintf(`{"image_path":%q,"model":"missing"}`, writeImage(t))
	resp, body := postJSON(t, sp.base+"/auto_segment", []byte(payload))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_EnvOverridesAndGracefulExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGTERM")
	}
	bin := buildBinary(t)
	t.Setenv("SEGD_CACHE_SIZE", "3")
	sp := startServer(t, bin, "--weights-dir", createWeightsDir(t))

	_, body := get(t, sp.base+"/status")
	if !bytes.Contains(body, []byte(`"capacity":3`)) {
		t.Fatalf("env override not applied: %s", string(body))
	}

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("exit: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not exit after SIGTERM")
	}
}
