package manager

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"segd/internal/sam"
	"segd/internal/sam/samtest"
	"segd/pkg/types"
)

// objectRect is the single object painted into test images.
var objectRect = image.Rect(8, 8, 24, 20)

// writeScene writes a 64x48 PNG with one object and returns its path.
func writeScene(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, samtest.Scene(64, 48, objectRect)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return p
}

type testEnv struct {
	m      *Manager
	models map[string]*samtest.Model
	pub    *MemoryPublisher
	clock  *clockwork.FakeClock
	image  string
}

type envOption func(*ManagerConfig)

func withMicro() envOption {
	return func(c *ManagerConfig) {
		c.Registry = append(c.Registry, types.Model{ID: "vit_b_lm", Family: types.FamilyMicroSAM})
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		models: map[string]*samtest.Model{
			"sam2-tiny": samtest.NewModel("sam2-tiny", sam.FamilySAM2),
			"vit_b_lm":  samtest.NewModel("vit_b_lm", sam.FamilyMicroSAM),
		},
		pub:   NewMemoryPublisher(),
		clock: clockwork.NewFakeClockAt(time.Unix(1700000000, 0)),
		image: writeScene(t, t.TempDir(), "scene.png"),
	}
	cfg := ManagerConfig{
		Registry:  []types.Model{{ID: "sam2-tiny", Family: types.FamilySAM2}},
		Opener:    samtest.Opener(env.models),
		Publisher: env.pub,
		Clock:     env.clock,
	}
	for _, o := range opts {
		o(&cfg)
	}
	env.m = NewWithConfig(cfg)
	t.Cleanup(func() { _ = env.m.Close() })
	return env
}

func hasEvent(p *MemoryPublisher, name string) bool {
	for _, n := range p.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func withCacheSize(n int) envOption {
	return func(c *ManagerConfig) { c.CacheSize = n }
}
