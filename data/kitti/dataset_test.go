package kitti

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/sugarme/semseg/data"
)

func TestEncodeLabel(t *testing.T) {
	for class, id := range ValidLabels {
		if got := encodeLabel(id); got != int64(class) {
			t.Errorf("label %v: want class %v, got %v", id, class, got)
		}
	}
	for _, id := range VoidLabels {
		if got := encodeLabel(id); got != data.IgnoreLabel {
			t.Errorf("void label %v: want %v, got %v", id, data.IgnoreLabel, got)
		}
	}
	for _, id := range []uint8{34, 40, 255} {
		if got := encodeLabel(id); got != data.IgnoreLabel {
			t.Errorf("unknown label %v: want %v, got %v", id, data.IgnoreLabel, got)
		}
	}
	if NumClasses() != 19 {
		t.Errorf("want 19 classes, got %v", NumClasses())
	}
}

func TestSplitIndices(t *testing.T) {
	train, val, test := splitIndices(10, 0.2, 0.1, rand.New(rand.NewSource(42)))
	if len(train) != 7 || len(val) != 2 || len(test) != 1 {
		t.Fatalf("want sizes 7/2/1, got %v/%v/%v", len(train), len(val), len(test))
	}

	var all []int
	all = append(all, train...)
	all = append(all, val...)
	all = append(all, test...)
	sort.Ints(all)
	for i, v := range all {
		if i != v {
			t.Fatalf("split is not a partition of [0, 10): %v", all)
		}
	}

	train2, val2, test2 := splitIndices(10, 0.2, 0.1, rand.New(rand.NewSource(42)))
	if !reflect.DeepEqual(train, train2) || !reflect.DeepEqual(val, val2) || !reflect.DeepEqual(test, test2) {
		t.Errorf("split is not deterministic for a fixed seed")
	}
}

// writeSample writes a 4x3 RGB image and a label image whose left half is
// leftID and right half rightID.
func writeSample(t *testing.T, dir, name string, leftID, rightID uint8) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(40 * x), uint8(60 * y), 200, 255})
			id := leftID
			if x >= 2 {
				id = rightID
			}
			mask.SetGray(x, y, color.Gray{id})
		}
	}

	for sub, m := range map[string]image.Image{ImageDir: img, MaskDir: mask} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatal(err)
		}
		if err := SavePNG(m, filepath.Join(p, name)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDatasetItem(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "000000_10.png", 7, 26)

	ds, err := NewDataset(dir, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 1 {
		t.Fatalf("want 1 sample, got %v", ds.Len())
	}

	item, err := ds.Item(0)
	if err != nil {
		t.Fatal(err)
	}
	s := item.(Sample)
	defer s.Image.MustDrop()
	defer s.Mask.MustDrop()

	if got := s.Image.MustSize(); !reflect.DeepEqual(got, []int64{3, 2, 4}) {
		t.Errorf("want image shape [3 2 4], got %v", got)
	}
	if got := s.Mask.MustSize(); !reflect.DeepEqual(got, []int64{2, 4}) {
		t.Errorf("want mask shape [2 4], got %v", got)
	}

	want := []int64{0, 0, 13, 13, 0, 0, 13, 13}
	if got := s.Mask.Int64Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("want mask %v, got %v", want, got)
	}

	if _, err := ds.Item(1); err == nil {
		t.Errorf("expected out of range error")
	}
}

func TestDatasetMissingMask(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "000000_10.png", 7, 7)
	if err := os.Remove(filepath.Join(dir, MaskDir, "000000_10.png")); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDataset(dir, 4, 3); err == nil {
		t.Errorf("expected error for missing mask")
	}
}

func TestDataModuleLoaders(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
		writeSample(t, dir, n, 7, 8)
	}

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.BatchSize = 2
	cfg.ValSplit = 0.2
	cfg.TestSplit = 0
	cfg.Shuffle = true
	cfg.ImgWidth = 4
	cfg.ImgHeight = 3

	dm, err := NewDataModule(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tr, va, te := dm.Sizes(); tr != 4 || va != 1 || te != 0 {
		t.Fatalf("want sizes 4/1/0, got %v/%v/%v", tr, va, te)
	}

	testDL, err := dm.TestLoader()
	if err != nil {
		t.Fatal(err)
	}
	if testDL.HasNext() {
		t.Errorf("empty test split should yield no batch")
	}

	dl, err := dm.TrainLoader()
	if err != nil {
		t.Fatal(err)
	}

	for epoch := 0; epoch < 2; epoch++ {
		dl.Reset()
		batches := 0
		for dl.HasNext() {
			b, err := dl.Next()
			if err != nil {
				t.Fatal(err)
			}
			if got := b.Images.MustSize(); !reflect.DeepEqual(got, []int64{2, 3, 3, 4}) {
				t.Errorf("want images shape [2 3 3 4], got %v", got)
			}
			if got := b.Masks.MustSize(); !reflect.DeepEqual(got, []int64{2, 3, 4}) {
				t.Errorf("want masks shape [2 3 4], got %v", got)
			}
			b.Drop()
			batches++
		}
		if batches != 2 {
			t.Errorf("epoch %v: want 2 batches, got %v", epoch, batches)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	cfg.ValSplit = 0.6
	cfg.TestSplit = 0.5
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for splits summing over 1")
	}

	cfg = DefaultConfig()
	cfg.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for batch size 0")
	}
}
