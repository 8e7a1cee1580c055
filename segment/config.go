package segment

import (
	"flag"
	"fmt"

	"github.com/sugarme/semseg/unet"
)

// Config holds Model hyperparameters. It is fixed once a Model is created.
type Config struct {
	LR            float64 // learning rate
	NumClasses    int64
	NumLayers     int64 // number of layers on each side of the UNet
	FeaturesStart int64 // number of features in the first layer
	Bilinear      bool  // bilinear interpolation instead of transposed convolutions
}

// DefaultConfig returns defaults for the 19-class KITTI semantics dataset.
func DefaultConfig() Config {
	return Config{
		LR:            0.01,
		NumClasses:    19,
		NumLayers:     5,
		FeaturesStart: 64,
		Bilinear:      false,
	}
}

// RegisterFlags binds c fields to command line flags, using current values
// as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.LR, "lr", c.LR, "adam: learning rate")
	fs.Int64Var(&c.NumClasses, "num_classes", c.NumClasses, "number of segmentation classes")
	fs.Int64Var(&c.NumLayers, "num_layers", c.NumLayers, "number of layers on u-net")
	fs.Int64Var(&c.FeaturesStart, "features_start", c.FeaturesStart, "number of features in first layer")
	fs.BoolVar(&c.Bilinear, "bilinear", c.Bilinear, "whether to use bilinear interpolation or transposed")
}

// Validate verifies the config describes a buildable model.
func (c Config) Validate() error {
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %v)", c.LR)
	}
	if c.NumClasses < 1 {
		return fmt.Errorf("num_classes must be > 0 (got %v)", c.NumClasses)
	}
	if c.NumLayers < 1 {
		return fmt.Errorf("num_layers must be > 0 (got %v)", c.NumLayers)
	}
	if c.FeaturesStart < 1 {
		return fmt.Errorf("features_start must be > 0 (got %v)", c.FeaturesStart)
	}
	return nil
}

func (c Config) unetConfig() unet.Config {
	return unet.Config{
		NumClasses:    c.NumClasses,
		InChannels:    3,
		NumLayers:     c.NumLayers,
		FeaturesStart: c.FeaturesStart,
		Bilinear:      c.Bilinear,
	}
}
