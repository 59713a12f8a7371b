package amg

import (
	"context"
	"errors"
	"image"
	"testing"

	"segd/internal/sam"
	"segd/internal/sam/samtest"
)

func TestAdaptive_Boundaries(t *testing.T) {
	cases := []struct {
		w, h   int
		points int
		layers int
		iou    float32
	}{
		{511, 300, 32, 1, 0.85},
		{512, 512, 32, 1, 0.85},
		{300, 513, 24, 1, 0.8},
		{1024, 10, 24, 1, 0.8},
		{1025, 10, 16, 0, 0.7},
		{4000, 3000, 16, 0, 0.7},
	}
	for _, c := range cases {
		p := Adaptive(c.w, c.h)
		if p.PointsPerSide != c.points || p.CropNLayers != c.layers || p.PredIoUThresh != c.iou {
			t.Fatalf("Adaptive(%d,%d) = %+v", c.w, c.h, p)
		}
	}
}

func TestDefault(t *testing.T) {
	p := Default()
	if p.PointsPerSide != 16 || p.PredIoUThresh != 0.7 || p.StabilityScoreThresh != 0.8 || p.CropNLayers != 0 {
		t.Fatalf("unexpected default %+v", p)
	}
}

func TestCropBoxes(t *testing.T) {
	got := CropBoxes(100, 100, 1, 0.5)
	want := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(0, 0, 75, 75),
		image.Rect(0, 25, 75, 100),
		image.Rect(25, 0, 100, 75),
		image.Rect(25, 25, 100, 100),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d crops, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Box != want[i] {
			t.Fatalf("crop %d = %v, want %v", i, got[i].Box, want[i])
		}
	}
	if got[0].Layer != 0 || got[4].Layer != 1 {
		t.Fatalf("bad layers: %+v", got)
	}
}

func TestPointGrid(t *testing.T) {
	if g := PointGrid(1); len(g) != 1 || g[0] != [2]float32{0.5, 0.5} {
		t.Fatalf("PointGrid(1) = %v", g)
	}
	g := PointGrid(2)
	want := [][2]float32{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}, {0.75, 0.75}}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("PointGrid(2)[%d] = %v, want %v", i, g[i], want[i])
		}
	}
	if PointGrid(0) != nil {
		t.Fatalf("expected nil grid")
	}
}

func TestNMS(t *testing.T) {
	boxes := []box{
		{0, 0, 10, 10},
		{1, 1, 10, 10},
		{50, 50, 60, 60},
	}
	keep := nms(boxes, []float32{0.5, 0.9, 0.7}, 0.7)
	if len(keep) != 2 || keep[0] != 1 || keep[1] != 2 {
		t.Fatalf("keep = %v", keep)
	}
	if iou := boxIoU(box{0, 0, 1, 1}, box{2, 2, 3, 3}); iou != 0 {
		t.Fatalf("disjoint iou = %v", iou)
	}
}

func TestRLE_Paste(t *testing.T) {
	bin := []uint8{
		0, 1, 1,
		1, 0, 0,
	}
	r := encodeRLE(bin, 3, 2)
	dst := make([]uint8, 5*4)
	r.pasteInto(dst, 5, 1, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if dst[(y+2)*5+x+1] != bin[y*3+x] {
				t.Fatalf("pixel (%d,%d) mismatch", x, y)
			}
		}
	}
}

func TestLabelImage_LaterMasksWin(t *testing.T) {
	a := Mask{Width: 2, Height: 1, Segmentation: []uint8{1, 1}}
	b := Mask{Width: 2, Height: 1, Segmentation: []uint8{0, 1}}
	got := LabelImage([]Mask{a, b}, 2, 1)
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("labels = %v", got)
	}
}

func TestGenerate_FindsObjects(t *testing.T) {
	a := image.Rect(5, 5, 20, 20)
	b := image.Rect(30, 10, 50, 40)
	img := samtest.Scene(64, 48, a, b)
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)

	masks, err := Generate(context.Background(), m, img, Default(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(masks) != 3 {
		t.Fatalf("got %d masks, want 3", len(masks))
	}
	areas := map[int]bool{}
	for _, mk := range masks {
		if mk.Width != 64 || mk.Height != 48 || len(mk.Segmentation) != 64*48 {
			t.Fatalf("bad mask size %dx%d", mk.Width, mk.Height)
		}
		areas[mk.Area] = true
	}
	for _, want := range []int{15 * 15, 20 * 30, 64*48 - 15*15 - 20*30} {
		if !areas[want] {
			t.Fatalf("missing mask with area %d; have %v", want, areas)
		}
	}
	if m.Encodes() != 1 || m.OpenEmbeddings() != 0 {
		t.Fatalf("encodes=%d open=%d", m.Encodes(), m.OpenEmbeddings())
	}
}

func TestGenerate_ReusesEmbedding(t *testing.T) {
	img := samtest.Scene(32, 32, image.Rect(4, 4, 12, 12))
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)
	emb, err := m.Encode(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Generate(context.Background(), m, img, Default(), Options{Embedding: emb}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if m.Encodes() != 1 {
		t.Fatalf("expected embedding reuse, encodes=%d", m.Encodes())
	}
	if emb.(*samtest.Embedding).Closed() {
		t.Fatalf("caller's embedding must stay open")
	}
	_ = emb.Close()
}

func TestGenerate_CropsReleaseEmbeddings(t *testing.T) {
	img := samtest.Scene(64, 48, image.Rect(5, 5, 20, 20))
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)
	masks, err := Generate(context.Background(), m, img, Adaptive(64, 48), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(masks) == 0 {
		t.Fatalf("expected masks")
	}
	if m.Encodes() != 5 || m.OpenEmbeddings() != 0 {
		t.Fatalf("encodes=%d open=%d", m.Encodes(), m.OpenEmbeddings())
	}
}

func TestGenerate_MinArea(t *testing.T) {
	img := samtest.Scene(64, 48, image.Rect(5, 5, 20, 20))
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)
	p := Default()
	p.MinMaskRegionArea = 1000
	masks, err := Generate(context.Background(), m, img, p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, mk := range masks {
		if mk.Area < 1000 {
			t.Fatalf("mask of area %d survived", mk.Area)
		}
	}
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)
	_, err := Generate(ctx, m, samtest.Scene(16, 16), Default(), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerate_DecodeError(t *testing.T) {
	m := samtest.NewModel("sam2-test", sam.FamilySAM2)
	m.DecodeErr = errors.New("boom")
	_, err := Generate(context.Background(), m, samtest.Scene(16, 16), Default(), Options{})
	if err == nil || m.OpenEmbeddings() != 0 {
		t.Fatalf("err=%v open=%d", err, m.OpenEmbeddings())
	}
}
