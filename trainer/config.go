package trainer

import (
	"flag"
	"fmt"

	"github.com/sugarme/gotch"
)

// Config holds training engine options.
type Config struct {
	MaxEpochs         int
	Cuda              bool
	DefaultRootDir    string // checkpoints and reports go here
	LogEvery          int    // log train loss every N steps
	Patience          int    // epochs without val_loss improvement before stopping. 0 disables.
	LimitTrainBatches int    // 0 means all
	LimitValBatches   int    // 0 means all
}

// DefaultConfig returns default trainer options.
func DefaultConfig() Config {
	return Config{
		MaxEpochs:      10,
		DefaultRootDir: "./checkpoint",
		LogEvery:       50,
	}
}

// RegisterFlags binds c fields to command line flags, using current values
// as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.MaxEpochs, "max_epochs", c.MaxEpochs, "number of training epochs")
	fs.BoolVar(&c.Cuda, "cuda", c.Cuda, "train on GPU if available")
	fs.StringVar(&c.DefaultRootDir, "default_root_dir", c.DefaultRootDir, "directory for checkpoints, metrics and plots")
	fs.IntVar(&c.LogEvery, "log_every", c.LogEvery, "log train loss every N steps")
	fs.IntVar(&c.Patience, "patience", c.Patience, "early stopping patience in epochs (0 = off)")
	fs.IntVar(&c.LimitTrainBatches, "limit_train_batches", c.LimitTrainBatches, "train batches per epoch (0 = all)")
	fs.IntVar(&c.LimitValBatches, "limit_val_batches", c.LimitValBatches, "validation batches per epoch (0 = all)")
}

// Validate checks option ranges.
func (c Config) Validate() error {
	switch {
	case c.MaxEpochs < 1:
		return fmt.Errorf("max_epochs must be > 0 (got %v)", c.MaxEpochs)
	case c.DefaultRootDir == "":
		return fmt.Errorf("default_root_dir must not be empty")
	case c.LogEvery < 1:
		return fmt.Errorf("log_every must be > 0 (got %v)", c.LogEvery)
	case c.Patience < 0:
		return fmt.Errorf("patience must be >= 0 (got %v)", c.Patience)
	case c.LimitTrainBatches < 0 || c.LimitValBatches < 0:
		return fmt.Errorf("batch limits must be >= 0")
	}
	return nil
}

// Device returns the device to train on.
func (c Config) Device() gotch.Device {
	if c.Cuda {
		return gotch.CudaIfAvailable()
	}
	return gotch.CPU
}
