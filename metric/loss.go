package metric

import (
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// CrossEntropy computes per-pixel cross entropy between class scores and
// target class indices, averaged over pixels whose target is not ignoreIndex.
//
// logits: [B K H W] float; target: [B H W] int64.
//
// When every pixel is ignored the loss is 0 (not NaN) and still attached to
// the autograd graph of logits.
func CrossEntropy(logits, target *ts.Tensor, ignoreIndex int64) *ts.Tensor {
	logp := logits.MustLogSoftmax(1, gotch.Float, false)

	// NOTE: reduction: none = 0; mean = 1; sum = 2.
	// ref. https://pytorch.org/docs/stable/generated/torch.nn.functional.nll_loss.html
	sum := logp.MustNllLoss2d(target, ts.NewTensor(), 2, ignoreIndex, true)

	valid := target.MustNe(ts.IntScalar(ignoreIndex), false)
	count := valid.MustSum(gotch.Double, true)
	n := count.Float64Values()[0]
	count.MustDrop()
	if n == 0 {
		n = 1 // sum is 0 as well
	}

	return sum.MustDivScalar(ts.FloatScalar(n), true)
}
