package metric_test

import (
	"math"
	"testing"

	"github.com/sugarme/semseg/metric"
)

func TestConfusionIoU(t *testing.T) {
	pred := []int64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tgt := []int64{1, 0, 0, 1, 1, 0, 1, 0, 0}

	c := metric.NewConfusion(2)
	if err := c.Add(pred, tgt, ignore); err != nil {
		t.Fatal(err)
	}

	iou := c.IoU()
	if math.Abs(iou[1]-0.75) > 1e-9 {
		t.Errorf("Want IoU class 1: 0.7500. Got: %0.4f\n", iou[1])
	}
	if math.Abs(iou[0]-5.0/6.0) > 1e-9 {
		t.Errorf("Want IoU class 0: 0.8333. Got: %0.4f\n", iou[0])
	}

	wantMean := (0.75 + 5.0/6.0) / 2
	if got := c.MeanIoU(); math.Abs(got-wantMean) > 1e-9 {
		t.Errorf("Want mean IoU: %0.4f. Got: %0.4f\n", wantMean, got)
	}
	if got := c.PixelAccuracy(); math.Abs(got-8.0/9.0) > 1e-9 {
		t.Errorf("Want pixel accuracy: %0.4f. Got: %0.4f\n", 8.0/9.0, got)
	}
}

func TestConfusionIgnoreAndMerge(t *testing.T) {
	a := metric.NewConfusion(3)
	if err := a.Add([]int64{2, 2, 0}, []int64{2, ignore, 0}, ignore); err != nil {
		t.Fatal(err)
	}
	b := metric.NewConfusion(3)
	if err := b.Add([]int64{1}, []int64{2}, ignore); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}

	if got := a.Total(); got != 3 {
		t.Errorf("Want total: 3. Got: %v\n", got)
	}
	if got := a.At(2, 1); got != 1 {
		t.Errorf("Want At(2, 1): 1. Got: %v\n", got)
	}

	// class 1 never in target, predicted once: IoU 0. class 0: 1. class 2: 1/2.
	want := (0 + 1 + 0.5) / 3
	if got := a.MeanIoU(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Want mean IoU: %v. Got: %v\n", want, got)
	}
}

func TestConfusionErrors(t *testing.T) {
	c := metric.NewConfusion(2)
	if err := c.Add([]int64{0}, []int64{0, 1}, ignore); err == nil {
		t.Errorf("Expected length mismatch error")
	}
	if err := c.Add([]int64{5}, []int64{1}, ignore); err == nil {
		t.Errorf("Expected out of range prediction error")
	}
	if err := c.Merge(metric.NewConfusion(3)); err == nil {
		t.Errorf("Expected merge error")
	}

	empty := metric.NewConfusion(4)
	if empty.MeanIoU() != 0 || empty.PixelAccuracy() != 0 {
		t.Errorf("Expected zero metrics on empty matrix")
	}
}
