package kitti

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/data"
)

// Sub directories of a KITTI semantics download.
var (
	ImageDir = filepath.Join("training", "image_2")
	MaskDir  = filepath.Join("training", "semantic")
)

var (
	// VoidLabels are raw label ids mapped to data.IgnoreLabel.
	VoidLabels = []uint8{0, 1, 2, 3, 4, 5, 6, 9, 10, 14, 15, 16, 18, 29, 30}
	// ValidLabels are raw label ids mapped, in order, to classes 0..18.
	ValidLabels = []uint8{7, 8, 11, 12, 13, 17, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 31, 32, 33}
)

// labelMap maps raw label ids to class indices. Anything that is not a valid
// label is ignored.
var labelMap = func() [256]int64 {
	var lut [256]int64
	for i := range lut {
		lut[i] = data.IgnoreLabel
	}
	for class, id := range ValidLabels {
		lut[id] = int64(class)
	}
	return lut
}()

func encodeLabel(id uint8) int64 {
	return labelMap[id]
}

// NumClasses is number of KITTI classes used for training.
func NumClasses() int64 {
	return int64(len(ValidLabels))
}

// Sample is a single image [3 H W] and its encoded mask [H W].
type Sample struct {
	Image *ts.Tensor
	Mask  *ts.Tensor
}

// Dataset implements dutil.Dataset over KITTI image/mask pairs.
type Dataset struct {
	images  []string
	masks   []string
	indices []int
	width   int
	height  int
}

// NewDataset lists image/mask pairs under dataDir. Pairs share a file name.
func NewDataset(dataDir string, width, height int) (*Dataset, error) {
	imgPath := filepath.Join(dataDir, ImageDir)
	maskPath := filepath.Join(dataDir, MaskDir)

	files, err := os.ReadDir(imgPath)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !isImageFile(f.Name()) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	ds := &Dataset{width: width, height: height}
	for i, n := range names {
		m := filepath.Join(maskPath, n)
		if _, err := os.Stat(m); err != nil {
			return nil, fmt.Errorf("mask for image %q: %w", n, err)
		}
		ds.images = append(ds.images, filepath.Join(imgPath, n))
		ds.masks = append(ds.masks, m)
		ds.indices = append(ds.indices, i)
	}

	return ds, nil
}

// Len implements dutil.Dataset.
func (ds *Dataset) Len() int {
	return len(ds.indices)
}

// Item implements dutil.Dataset.
func (ds *Dataset) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= len(ds.indices) {
		return nil, fmt.Errorf("index %v out of range [0, %v)", idx, len(ds.indices))
	}
	i := ds.indices[idx]

	img, _, err := LoadImage(ds.images[i], ds.width, ds.height)
	if err != nil {
		return nil, fmt.Errorf("load image %q: %w", ds.images[i], err)
	}
	mask, err := LoadMask(ds.masks[i], ds.width, ds.height)
	if err != nil {
		img.MustDrop()
		return nil, fmt.Errorf("load mask %q: %w", ds.masks[i], err)
	}

	return Sample{Image: img, Mask: mask}, nil
}

// DType implements dutil.Dataset.
func (ds *Dataset) DType() reflect.Type {
	return reflect.TypeOf(Sample{})
}

// Files returns image file paths in current order.
func (ds *Dataset) Files() []string {
	files := make([]string, len(ds.indices))
	for j, i := range ds.indices {
		files[j] = ds.images[i]
	}
	return files
}

// Subset returns a view of ds holding given positions.
func (ds *Dataset) Subset(positions []int) *Dataset {
	indices := make([]int, len(positions))
	for j, p := range positions {
		indices[j] = ds.indices[p]
	}

	return &Dataset{
		images:  ds.images,
		masks:   ds.masks,
		indices: indices,
		width:   ds.width,
		height:  ds.height,
	}
}

// Shuffle reorders ds in place using rng.
func (ds *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds.indices), func(i, j int) {
		ds.indices[i], ds.indices[j] = ds.indices[j], ds.indices[i]
	})
}
