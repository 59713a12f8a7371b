package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"segd/internal/common/fsutil"
	"segd/pkg/types"
)

// LoadDir scans dir for model sub-directories. A sub-directory is a model
// when it holds one ONNX file whose name contains "encoder" and one whose
// name contains "decoder". The directory name is the model ID.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.AbsPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, ok, err := scanModelDir(filepath.Join(abs, e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			models = append(models, m)
		}
	}
	return models, nil
}

func scanModelDir(dir string) (types.Model, bool, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return types.Model{}, false, fmt.Errorf("read dir: %w", err)
	}
	var enc, dec string
	for _, f := range files {
		name := strings.ToLower(f.Name())
		if f.IsDir() || !strings.HasSuffix(name, ".onnx") {
			continue
		}
		// Decoders are often named "prompt_encoder_mask_decoder", so test for decoder first.
		switch {
		case strings.Contains(name, "decoder") && dec == "":
			dec = filepath.Join(dir, f.Name())
		case strings.Contains(name, "encoder") && enc == "":
			enc = filepath.Join(dir, f.Name())
		}
	}
	if enc == "" || dec == "" {
		return types.Model{}, false, nil
	}
	id := filepath.Base(dir)
	return types.Model{ID: id, Name: id, Family: FamilyFromID(id), Encoder: enc, Decoder: dec}, true, nil
}

// FamilyFromID guesses the family from a model ID: micro-sam checkpoints
// are named micro*/vit_* by convention.
func FamilyFromID(id string) string {
	l := strings.ToLower(id)
	if strings.HasPrefix(l, "micro") || strings.HasPrefix(l, "vit_") {
		return types.FamilyMicroSAM
	}
	return types.FamilySAM2
}

// Merge overlays explicit models onto discovered ones by ID. Empty fields
// of an explicit model are filled from the discovered entry. The result is
// sorted by ID.
func Merge(discovered, explicit []types.Model) []types.Model {
	byID := make(map[string]types.Model, len(discovered)+len(explicit))
	for _, m := range discovered {
		byID[m.ID] = m
	}
	for _, m := range explicit {
		if d, ok := byID[m.ID]; ok {
			if m.Name == "" {
				m.Name = d.Name
			}
			if m.Family == "" {
				m.Family = d.Family
			}
			if m.Encoder == "" {
				m.Encoder = d.Encoder
			}
			if m.Decoder == "" {
				m.Decoder = d.Decoder
			}
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		if m.Family == "" {
			m.Family = FamilyFromID(m.ID)
		}
		byID[m.ID] = m
	}
	out := make([]types.Model, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
