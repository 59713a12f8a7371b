package registry

import (
	"os"
	"path/filepath"
	"testing"

	"segd/pkg/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
}

func TestLoadDir_FindsEncoderDecoderPairs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "sam2-hiera-tiny", "vision_encoder.onnx"))
	touch(t, filepath.Join(dir, "sam2-hiera-tiny", "prompt_encoder_mask_decoder.onnx"))
	touch(t, filepath.Join(dir, "vit_b_lm", "encoder.ONNX"))
	touch(t, filepath.Join(dir, "vit_b_lm", "decoder.onnx"))
	touch(t, filepath.Join(dir, "incomplete", "encoder.onnx"))
	touch(t, filepath.Join(dir, "stray.onnx"))

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models)
	}
	byID := map[string]types.Model{}
	for _, m := range models {
		byID[m.ID] = m
	}
	sam2 := byID["sam2-hiera-tiny"]
	if sam2.Family != types.FamilySAM2 || filepath.Base(sam2.Encoder) != "vision_encoder.onnx" || filepath.Base(sam2.Decoder) != "prompt_encoder_mask_decoder.onnx" {
		t.Fatalf("unexpected sam2 entry: %+v", sam2)
	}
	if byID["vit_b_lm"].Family != types.FamilyMicroSAM {
		t.Fatalf("vit_b_lm should be micro_sam: %+v", byID["vit_b_lm"])
	}
}

func TestLoadDir_Missing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	touch(t, filepath.Join(home, "w", "m1", "encoder.onnx"))
	touch(t, filepath.Join(home, "w", "m1", "decoder.onnx"))
	models, err := LoadDir("~/w")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 || models[0].ID != "m1" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestMerge(t *testing.T) {
	discovered := []types.Model{{ID: "b", Name: "b", Family: "sam2", Encoder: "/w/b/enc.onnx", Decoder: "/w/b/dec.onnx"}}
	explicit := []types.Model{
		{ID: "b", Name: "Bee"},
		{ID: "micro-sam-vit-b", Encoder: "/x/e.onnx", Decoder: "/x/d.onnx"},
	}
	got := Merge(discovered, explicit)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "micro-sam-vit-b" {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if got[0].Name != "Bee" || got[0].Encoder != "/w/b/enc.onnx" {
		t.Fatalf("explicit fields should overlay discovered: %+v", got[0])
	}
	if got[1].Family != types.FamilyMicroSAM || got[1].Name != "micro-sam-vit-b" {
		t.Fatalf("defaults not applied: %+v", got[1])
	}
}
