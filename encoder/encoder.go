package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/base"
)

// Encoder is encoder interface for a image segmentation model.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
	OutChannels() []int64
}

// Down is a SequentialT module composed of maxpool and 2x conv.
type Down struct {
	MaxpoolConv *nn.SequentialT
}

// NewDown creates a new Down ModuleT layer.
func NewDown(p *nn.Path, cIn, cOut int64) *Down {
	down := nn.SeqT()
	down.AddFn(nn.NewFunc(base.MaxPool2x2))
	down.Add(base.DoubleConv(p, cIn, cOut))

	return &Down{down}
}

// ForwardT implements ts.ModuleT interface.
func (l *Down) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return l.MaxpoolConv.ForwardT(x, train)
}

// UNetEncoder is the contracting path of a UNet: a DoubleConv stem followed by
// numLayers-1 Down layers, each doubling the channels and halving H and W.
type UNetEncoder struct {
	inc      *nn.SequentialT
	downs    []*Down
	channels []int64
}

// NewUNetEncoder creates the contracting path of a UNet.
func NewUNetEncoder(p *nn.Path, cIn, numLayers, featuresStart int64) (*UNetEncoder, error) {
	if numLayers < 1 {
		return nil, fmt.Errorf("num_layers = %v, expected: num_layers > 0", numLayers)
	}
	if featuresStart < 1 {
		return nil, fmt.Errorf("features_start = %v, expected: features_start > 0", featuresStart)
	}

	inc := base.DoubleConv(p.Sub("inc"), cIn, featuresStart)
	channels := []int64{featuresStart}
	var downs []*Down
	feats := featuresStart
	for i := int64(1); i < numLayers; i++ {
		downs = append(downs, NewDown(p.Sub(fmt.Sprintf("down%d", i)), feats, feats*2))
		feats *= 2
		channels = append(channels, feats)
	}

	return &UNetEncoder{
		inc:      inc,
		downs:    downs,
		channels: channels,
	}, nil
}

// ForwardAll implements Encoder interface for UNetEncoder.
// It returns one feature map per level, shallowest first:
// [B f H W], [B 2f H/2 W/2], ...
func (e *UNetEncoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	features := []*ts.Tensor{e.inc.ForwardT(x, train)}
	for _, d := range e.downs {
		features = append(features, d.ForwardT(features[len(features)-1], train))
	}

	return features
}

// OutChannels implements Encoder interface for UNetEncoder.
func (e *UNetEncoder) OutChannels() []int64 {
	return e.channels
}
