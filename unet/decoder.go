package unet

import (
	"fmt"
	"log"
	"math"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/base"
)

// Up is a layer composed of an upsampling step and a double conv.
type Up struct {
	bilinear bool
	upWs     *ts.Tensor // transposed mode: [cIn cIn/2 2 2]
	upBs     *ts.Tensor // transposed mode: [cIn/2]
	reduce   *nn.Conv2D // bilinear mode
	conv     *nn.SequentialT
}

// NewUp creates new Up layer.
//
// The upsampling step doubles H and W and halves channels, either with a
// 2x2 transposed convolution of stride 2 or with bilinear interpolation
// followed by a 1x1 convolution.
func NewUp(p *nn.Path, cIn, cOut int64, bilinear bool) *Up {
	up := &Up{bilinear: bilinear}
	if bilinear {
		up.reduce = base.Conv2d(p.Sub("upsample"), cIn, cIn/2, 1, 0, 1)
	} else {
		up.upWs, up.upBs = newConvTranspose2x2(p.Sub("upsample"), cIn, cIn/2)
	}
	up.conv = base.DoubleConv(p.Sub("conv"), cIn, cOut)

	return up
}

// UpForward upsamples x1, pads it to the size of x2, concatenates
// [x2, x1] on the channel axis and forwards through double conv.
// x1, x2 should be in shape [Batch CHW]
func (l *Up) UpForward(x1, x2 *ts.Tensor, train bool) *ts.Tensor {
	xUp := l.upsample(x1)

	// Pad xUp to the size of x2
	upSize := xUp.MustSize()
	refSize := x2.MustSize()
	diffH := refSize[2] - upSize[2]
	diffW := refSize[3] - upSize[3]
	xPad := base.ZeroPad2d(xUp, diffW/2, diffW-diffW/2, diffH/2, diffH-diffH/2)
	xUp.MustDrop()

	x := ts.MustCat([]*ts.Tensor{x2, xPad}, 1)
	xPad.MustDrop()

	out := l.conv.ForwardT(x, train)
	x.MustDrop()

	return out
}

func (l *Up) upsample(x *ts.Tensor) *ts.Tensor {
	if !l.bilinear {
		// stride 2, no padding, no output padding, groups 1, dilation 1
		return ts.MustConvTranspose2d(x, l.upWs, l.upBs, []int64{2, 2}, []int64{0, 0}, []int64{0, 0}, 1, []int64{1, 1})
	}

	size := x.MustSize()
	outSize := []int64{size[2] * 2, size[3] * 2}
	up := x.MustUpsampleBilinear2d(outSize, true, nil, nil, false)
	out := l.reduce.Forward(up)
	up.MustDrop()

	return out
}

// newConvTranspose2x2 creates variables of a 2x2 transposed convolution.
// libtorch expects transposed weights as [cIn cOut k k].
func newConvTranspose2x2(p *nn.Path, cIn, cOut int64) (ws, bs *ts.Tensor) {
	ws = p.MustNewVar("weight", []int64{cIn, cOut, 2, 2}, nn.NewKaimingUniformInit())
	bound := 1.0 / math.Sqrt(float64(cOut*2*2))
	bs = p.MustNewVar("bias", []int64{cOut}, nn.NewUniformInit(-bound, bound))

	return ws, bs
}

// Decoder is the expanding path of a UNet.
type Decoder struct {
	ups []*Up
}

// NewDecoder creates Decoder mirroring encoder channels.
// encoderChannels are the output channels of each encoder level, shallowest first.
func NewDecoder(p *nn.Path, encoderChannels []int64, bilinear bool) *Decoder {
	var ups []*Up
	for i := len(encoderChannels) - 1; i > 0; i-- {
		feats := encoderChannels[i]
		name := fmt.Sprintf("up%d", len(encoderChannels)-i)
		ups = append(ups, NewUp(p.Sub(name), feats, feats/2, bilinear))
	}

	return &Decoder{ups}
}

// ForwardFeatures forwards through encoder features, deepest last.
// Features are not dropped.
func (d *Decoder) ForwardFeatures(features []*ts.Tensor, train bool) *ts.Tensor {
	if len(features) != len(d.ups)+1 {
		log.Fatalf("Expected features of %v tensors. Got %v\n", len(d.ups)+1, len(features))
	}

	x := features[len(features)-1]
	for i, up := range d.ups {
		skip := features[len(features)-2-i]
		z := up.UpForward(x, skip, train)
		if i > 0 {
			x.MustDrop()
		}
		x = z
	}

	if len(d.ups) == 0 {
		return x.MustShallowClone()
	}

	return x
}
