package base

import (
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dBnRelu creates a SequentialT composing of a 3x3 Conv2D (padding 1),
// a BatchNorm2D and a ReLU activation.
func Conv2dBnRelu(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p.Sub("conv"), cIn, cOut, 3, 1, 1))
	seq.Add(nn.BatchNorm2D(p.Sub("bn"), cOut, nn.DefaultBatchNormConfig()))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))

	return seq
}

// DoubleConv creates [Conv2D => BatchNorm => ReLU] x 2.
// Spatial size is kept, channels go from cIn to cOut.
func DoubleConv(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2dBnRelu(p.Sub("0"), cIn, cOut))
	seq.Add(Conv2dBnRelu(p.Sub("1"), cOut, cOut))

	return seq
}

// MaxPool2x2 down samples to half size: [B C H W] => [B C H/2 W/2]
func MaxPool2x2(x *ts.Tensor) *ts.Tensor {
	// ksize = 2; stride=2; padding=0; dilation=1; ceil=false
	return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
}

// ZeroPad2d pads the last 2 dimensions of a [B C H W] tensor with zeros.
// It always returns a new tensor; x is left untouched.
func ZeroPad2d(x *ts.Tensor, left, right, top, bottom int64) *ts.Tensor {
	if left == 0 && right == 0 && top == 0 && bottom == 0 {
		return x.MustShallowClone()
	}

	size := x.MustSize()
	b, c, h, w := size[0], size[1], size[2], size[3]
	dtype := x.DType()
	device := x.MustDevice()

	var cols []*ts.Tensor
	if left > 0 {
		cols = append(cols, ts.MustZeros([]int64{b, c, h, left}, dtype, device))
	}
	cols = append(cols, x)
	if right > 0 {
		cols = append(cols, ts.MustZeros([]int64{b, c, h, right}, dtype, device))
	}
	wide := ts.MustCat(cols, 3)
	for _, t := range cols {
		if t != x {
			t.MustDrop()
		}
	}

	w += left + right
	var rows []*ts.Tensor
	if top > 0 {
		rows = append(rows, ts.MustZeros([]int64{b, c, top, w}, dtype, device))
	}
	rows = append(rows, wide)
	if bottom > 0 {
		rows = append(rows, ts.MustZeros([]int64{b, c, bottom, w}, dtype, device))
	}
	out := ts.MustCat(rows, 2)
	for _, t := range rows {
		t.MustDrop()
	}

	return out
}
