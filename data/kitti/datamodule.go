package kitti

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"reflect"

	"github.com/sugarme/gotch/dutil"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/data"
)

// Config holds data source options.
type Config struct {
	DataDir   string
	BatchSize int
	ValSplit  float64 // fraction of samples held out for validation
	TestSplit float64 // fraction of samples held out for testing
	Seed      int64   // seed of the split and of training shuffling
	Shuffle   bool
	DropLast  bool
	ImgWidth  int
	ImgHeight int
}

// DefaultConfig returns KITTI defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:   "./data/kitti",
		BatchSize: 32,
		ValSplit:  0.2,
		TestSplit: 0.1,
		Seed:      42,
		Shuffle:   false,
		DropLast:  false,
		ImgWidth:  1242,
		ImgHeight: 376,
	}
}

// RegisterFlags binds c fields to command line flags, using current values
// as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DataDir, "data_dir", c.DataDir, "specify KITTI semantics data directory")
	fs.IntVar(&c.BatchSize, "batch_size", c.BatchSize, "specify batch size")
	fs.Float64Var(&c.ValSplit, "val_split", c.ValSplit, "specify fraction of samples used for validation")
	fs.Float64Var(&c.TestSplit, "test_split", c.TestSplit, "specify fraction of samples used for testing")
	fs.Int64Var(&c.Seed, "data_seed", c.Seed, "specify seed for train/val/test split and shuffling")
	fs.BoolVar(&c.Shuffle, "shuffle", c.Shuffle, "specify whether to shuffle training samples every epoch")
	fs.BoolVar(&c.DropLast, "drop_last", c.DropLast, "specify whether to drop the last incomplete batch")
	fs.IntVar(&c.ImgWidth, "img_width", c.ImgWidth, "specify image width after resizing")
	fs.IntVar(&c.ImgHeight, "img_height", c.ImgHeight, "specify image height after resizing")
}

// Validate verifies the config is usable.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.ValSplit < 0 || c.TestSplit < 0 || c.ValSplit+c.TestSplit >= 1 {
		return fmt.Errorf("val_split (%v) and test_split (%v) must be >= 0 and sum to < 1", c.ValSplit, c.TestSplit)
	}
	if c.ImgWidth <= 0 || c.ImgHeight <= 0 {
		return fmt.Errorf("image size must be > 0 (got %dx%d)", c.ImgWidth, c.ImgHeight)
	}
	return nil
}

// DataModule splits KITTI samples into train, val and test sets and creates
// batch loaders over them.
type DataModule struct {
	cfg   Config
	rng   *rand.Rand
	train *Dataset
	val   *Dataset
	test  *Dataset
}

// NewDataModule lists samples under cfg.DataDir and splits them.
func NewDataModule(cfg Config) (*DataModule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ds, err := NewDataset(cfg.DataDir, cfg.ImgWidth, cfg.ImgHeight)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	trainIdx, valIdx, testIdx := splitIndices(ds.Len(), cfg.ValSplit, cfg.TestSplit, rng)

	return &DataModule{
		cfg:   cfg,
		rng:   rng,
		train: ds.Subset(trainIdx),
		val:   ds.Subset(valIdx),
		test:  ds.Subset(testIdx),
	}, nil
}

// splitIndices randomly partitions [0, n) into train, val and test positions.
func splitIndices(n int, valSplit, testSplit float64, rng *rand.Rand) (train, val, test []int) {
	nVal := int(math.Round(float64(n) * valSplit))
	nTest := int(math.Round(float64(n) * testSplit))
	nTrain := n - nVal - nTest
	if nTrain < 0 {
		nTrain = 0
	}

	perm := rng.Perm(n)
	train = perm[:nTrain]
	val = perm[nTrain : nTrain+nVal]
	test = perm[nTrain+nVal:]

	return train, val, test
}

// Sizes returns number of samples in train, val and test sets.
func (dm *DataModule) Sizes() (train, val, test int) {
	return dm.train.Len(), dm.val.Len(), dm.test.Len()
}

// TrainLoader returns a loader over training samples.
func (dm *DataModule) TrainLoader() (data.Loader, error) {
	var rng *rand.Rand
	if dm.cfg.Shuffle {
		rng = dm.rng
	}
	return NewLoader(dm.train, dm.cfg.BatchSize, dm.cfg.DropLast, rng)
}

// ValLoader returns a loader over validation samples.
func (dm *DataModule) ValLoader() (data.Loader, error) {
	return NewLoader(dm.val, dm.cfg.BatchSize, false, nil)
}

// TestLoader returns a loader over test samples.
func (dm *DataModule) TestLoader() (data.Loader, error) {
	return NewLoader(dm.test, dm.cfg.BatchSize, false, nil)
}

// Loader implements data.Loader on top of dutil.DataLoader.
//
// dutil batches positions of an index dataset; samples are decoded only for
// the positions of the batch being served.
type Loader struct {
	ds  *Dataset
	rng *rand.Rand        // nil: keep order
	dl  *dutil.DataLoader // nil: no batches
}

// positions is a dutil.Dataset whose items are their own index.
type positions int

func (p positions) Len() int { return int(p) }

func (p positions) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= int(p) {
		return nil, fmt.Errorf("index %v out of range [0, %v)", idx, int(p))
	}
	return idx, nil
}

func (p positions) DType() reflect.Type {
	return reflect.TypeOf(int(0))
}

// NewLoader creates a Loader. With a non-nil rng the dataset is reshuffled
// on every Reset.
//
// A split with fewer samples than batchSize yields one partial batch, or no
// batch when dropLast is set. An empty split yields no batch.
func NewLoader(ds *Dataset, batchSize int, dropLast bool, rng *rand.Rand) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0 (got %v)", batchSize)
	}

	l := &Loader{ds: ds, rng: rng}
	n := ds.Len()
	if n == 0 || (dropLast && batchSize > n) {
		return l, nil
	}
	if batchSize > n {
		batchSize = n
	}

	// Shuffling is done on ds itself so that it follows rng.
	s, err := dutil.NewBatchSampler(n, batchSize, dropLast, false)
	if err != nil {
		return nil, err
	}
	dl, err := dutil.NewDataLoader(positions(n), s)
	if err != nil {
		return nil, err
	}
	l.dl = dl
	if rng != nil {
		ds.Shuffle(rng)
	}

	return l, nil
}

// Len returns number of samples.
func (l *Loader) Len() int {
	return l.ds.Len()
}

// HasNext implements data.Loader.
func (l *Loader) HasNext() bool {
	return l.dl != nil && l.dl.HasNext()
}

// Next implements data.Loader. It stacks samples into a data.Batch.
func (l *Loader) Next() (data.Batch, error) {
	if l.dl == nil {
		return data.Batch{}, errors.New("no batch left")
	}
	s, err := l.dl.Next()
	if err != nil {
		return data.Batch{}, err
	}

	idxs, ok := s.([]int)
	if !ok {
		return data.Batch{}, fmt.Errorf("unexpected batch type %T", s)
	}

	var img, mask []*ts.Tensor
	drop := func() {
		for _, x := range img {
			x.MustDrop()
		}
		for _, x := range mask {
			x.MustDrop()
		}
	}
	for _, idx := range idxs {
		item, err := l.ds.Item(idx)
		if err != nil {
			drop()
			return data.Batch{}, err
		}
		sample := item.(Sample)
		img = append(img, sample.Image)
		mask = append(mask, sample.Mask)
	}
	imgTs := ts.MustStack(img, 0)
	maskTs := ts.MustStack(mask, 0)
	drop()

	return data.NewBatch(imgTs, maskTs)
}

// Reset implements data.Loader.
func (l *Loader) Reset() {
	if l.dl == nil {
		return
	}
	if l.rng != nil {
		l.ds.Shuffle(l.rng)
	}
	l.dl.Reset()
}
