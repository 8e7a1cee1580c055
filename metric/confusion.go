package metric

import (
	"fmt"
	"math"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Confusion is a KxK pixel confusion matrix. Rows are target classes,
// columns are predicted classes.
type Confusion struct {
	k int
	m *mat.Dense
}

// NewConfusion creates an empty confusion matrix for numClasses classes.
func NewConfusion(numClasses int) *Confusion {
	return &Confusion{
		k: numClasses,
		m: mat.NewDense(numClasses, numClasses, nil),
	}
}

// NumClasses returns K.
func (c *Confusion) NumClasses() int {
	return c.k
}

// At returns number of pixels of class target predicted as class pred.
func (c *Confusion) At(target, pred int) float64 {
	return c.m.At(target, pred)
}

// Add counts pixel pairs. Pixels whose target equals ignoreIndex or falls
// outside [0, K) are skipped.
func (c *Confusion) Add(pred, target []int64, ignoreIndex int64) error {
	if len(pred) != len(target) {
		return fmt.Errorf("confusion: pred has %v pixels, target has %v", len(pred), len(target))
	}

	k := int64(c.k)
	data := c.m.RawMatrix().Data
	for i, t := range target {
		if t == ignoreIndex || t < 0 || t >= k {
			continue
		}
		p := pred[i]
		if p < 0 || p >= k {
			return fmt.Errorf("confusion: predicted class %v out of range [0, %v)", p, k)
		}
		data[t*k+p]++
	}

	return nil
}

// AddTensors counts pixels from class scores logits [B K H W] against
// target [B H W].
func (c *Confusion) AddTensors(logits, target *ts.Tensor, ignoreIndex int64) error {
	predTs := logits.MustArgmax([]int64{1}, false, false)
	pred := predTs.Int64Values()
	predTs.MustDrop()

	targetTs := target.MustTotype(gotch.Int64, false)
	tgt := targetTs.Int64Values()
	targetTs.MustDrop()

	return c.Add(pred, tgt, ignoreIndex)
}

// Merge adds counts of o into c.
func (c *Confusion) Merge(o *Confusion) error {
	if o.k != c.k {
		return fmt.Errorf("confusion: cannot merge %v classes into %v", o.k, c.k)
	}
	c.m.Add(c.m, o.m)

	return nil
}

// Total returns number of counted pixels.
func (c *Confusion) Total() float64 {
	return mat.Sum(c.m)
}

// PixelAccuracy returns ratio of correctly classified pixels.
// It returns 0 if nothing was counted.
func (c *Confusion) PixelAccuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}

	return mat.Trace(c.m) / total
}

// IoU returns intersection over union per class. Classes absent from both
// target and prediction get NaN.
func (c *Confusion) IoU() []float64 {
	iou := make([]float64, c.k)
	for i := 0; i < c.k; i++ {
		tp := c.m.At(i, i)
		row := floats.Sum(mat.Row(nil, i, c.m))
		col := floats.Sum(mat.Col(nil, i, c.m))
		union := row + col - tp
		if union == 0 {
			iou[i] = math.NaN()
			continue
		}
		iou[i] = tp / union
	}

	return iou
}

// MeanIoU returns mean IoU over classes present in target or prediction.
// Ref. https://en.wikipedia.org/wiki/Jaccard_index
func (c *Confusion) MeanIoU() float64 {
	var (
		sum float64
		n   int
	)
	for _, v := range c.IoU() {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}

	return sum / float64(n)
}
