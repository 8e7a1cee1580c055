package data

import (
	"fmt"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// IgnoreLabel marks mask pixels without ground truth. They are excluded from
// loss computation.
const IgnoreLabel int64 = 250

// Batch is a pair of images [B C H W] (float32) and label masks [B H W] (int64).
type Batch struct {
	Images *ts.Tensor
	Masks  *ts.Tensor
}

// NewBatch validates shapes and coerces images to float and masks to int64.
// Input tensors are consumed: on success they are either kept or dropped in
// favour of their converted copy.
func NewBatch(images, masks *ts.Tensor) (Batch, error) {
	iSize := images.MustSize()
	mSize := masks.MustSize()
	if len(iSize) != 4 {
		return Batch{}, fmt.Errorf("images: expected 4D tensor [B C H W]. Got %v dimensions", len(iSize))
	}
	if len(mSize) != 3 {
		return Batch{}, fmt.Errorf("masks: expected 3D tensor [B H W]. Got %v dimensions", len(mSize))
	}
	if iSize[0] != mSize[0] || iSize[2] != mSize[1] || iSize[3] != mSize[2] {
		return Batch{}, fmt.Errorf("images %v and masks %v disagree on batch or spatial size", iSize, mSize)
	}

	if images.DType() != gotch.Float {
		images = images.MustTotype(gotch.Float, true)
	}
	if masks.DType() != gotch.Int64 {
		masks = masks.MustTotype(gotch.Int64, true)
	}

	return Batch{Images: images, Masks: masks}, nil
}

// Size returns number of samples in the batch.
func (b Batch) Size() int64 {
	return b.Images.MustSize()[0]
}

// To moves batch to device.
func (b Batch) To(device gotch.Device) Batch {
	return Batch{
		Images: b.Images.MustTo(device, true),
		Masks:  b.Masks.MustTo(device, true),
	}
}

// Drop frees batch tensors.
func (b Batch) Drop() {
	b.Images.MustDrop()
	b.Masks.MustDrop()
}

// Loader yields batches over one pass of a dataset split.
type Loader interface {
	HasNext() bool
	Next() (Batch, error)
	Reset()
}
