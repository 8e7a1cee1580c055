package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/base"
	"github.com/sugarme/semseg/encoder"
)

// Config holds UNet architecture options.
type Config struct {
	NumClasses    int64 // number of output channels (classes)
	InChannels    int64 // number of input image channels
	NumLayers     int64 // number of levels on each side of the UNet
	FeaturesStart int64 // number of features in the first level
	Bilinear      bool  // bilinear interpolation instead of transposed convolutions
}

// DefaultConfig returns a UNet config for 3-channel images and 19 classes.
func DefaultConfig() Config {
	return Config{
		NumClasses:    19,
		InChannels:    3,
		NumLayers:     5,
		FeaturesStart: 64,
		Bilinear:      false,
	}
}

// UNet is a UNET model struct
// Ref: https://arxiv.org/abs/1505.04597
type UNet struct {
	encoder encoder.Encoder
	decoder *Decoder
	segHead *nn.SequentialT
}

// ForwardT implements ts.ModuleT for UNet struct.
//
// x: [B C H W] => [B NumClasses H W]
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	// E.g. NumLayers=5, FeaturesStart=64, x: [B 3 256 256]
	// 0- Shape: [B 64 256 256]
	// 1- Shape: [B 128 128 128]
	// 2- Shape: [B 256 64 64]
	// 3- Shape: [B 512 32 32]
	// 4- Shape: [B 1024 16 16]
	features := n.encoder.ForwardAll(x, train)
	out := n.decoder.ForwardFeatures(features, train) // [B 64 256 256]
	logits := n.segHead.ForwardT(out, train)

	for _, f := range features {
		f.MustDrop()
	}
	out.MustDrop()

	return logits
}

// New creates UNet.
func New(p *nn.Path, cfg Config) (*UNet, error) {
	if cfg.NumClasses < 1 {
		return nil, fmt.Errorf("num_classes = %v, expected: num_classes > 0", cfg.NumClasses)
	}
	if cfg.InChannels < 1 {
		return nil, fmt.Errorf("input channels = %v, expected: channels > 0", cfg.InChannels)
	}

	enc, err := encoder.NewUNetEncoder(p.Sub("encoder"), cfg.InChannels, cfg.NumLayers, cfg.FeaturesStart)
	if err != nil {
		return nil, err
	}
	dec := NewDecoder(p.Sub("decoder"), enc.OutChannels(), cfg.Bilinear)

	// cIn=FeaturesStart, cOut=classes, ksize=1
	head := base.NewSegmentationHead(p.Sub("logit"), cfg.FeaturesStart, cfg.NumClasses, 1)

	return &UNet{
		encoder: enc,
		decoder: dec,
		segHead: head,
	}, nil
}

// DefaultUNet creates UNet with default values.
func DefaultUNet(p *nn.Path) *UNet {
	net, err := New(p, DefaultConfig())
	if err != nil {
		panic(err)
	}

	return net
}
