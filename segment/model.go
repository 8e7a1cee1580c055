package segment

import (
	"log"
	"math"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sugarme/semseg/base"
	"github.com/sugarme/semseg/data"
	"github.com/sugarme/semseg/metric"
	"github.com/sugarme/semseg/trainer"
	"github.com/sugarme/semseg/unet"
)

// Period of the cosine annealing learning rate schedule.
const cosinePeriod = 10

// Model is a semantic segmentation model using a UNet network.
// It implements trainer.Module.
type Model struct {
	cfg Config
	vs  *nn.VarStore
	net *unet.UNet
}

// New creates a Model on device. Seed initializes libtorch's random generator
// before weights are created.
func New(cfg Config, device gotch.Device, seed int64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base.ManualSeed(seed)
	vs := nn.NewVarStore(device)
	net, err := unet.New(vs.Root(), cfg.unetConfig())
	if err != nil {
		return nil, err
	}

	return &Model{
		cfg: cfg,
		vs:  vs,
		net: net,
	}, nil
}

// Config returns model hyperparameters.
func (m *Model) Config() Config {
	return m.cfg
}

// VarStore implements trainer.Module.
func (m *Model) VarStore() *nn.VarStore {
	return m.vs
}

// Forward runs images [B C H W] through the network and returns class scores
// [B NumClasses H W].
func (m *Model) Forward(x *ts.Tensor, train bool) *ts.Tensor {
	return m.net.ForwardT(x, train)
}

// Predict is Forward in evaluation mode without gradient tracking.
func (m *Model) Predict(x *ts.Tensor) *ts.Tensor {
	var out *ts.Tensor
	ts.NoGrad(func() {
		out = m.net.ForwardT(x, false)
	})

	return out
}

// PredictClasses returns the most likely class per pixel [B H W].
func (m *Model) PredictClasses(x *ts.Tensor) *ts.Tensor {
	logits := m.Predict(x)
	classes := logits.MustArgmax([]int64{1}, false, false)
	logits.MustDrop()

	return classes
}

// TrainingStep implements trainer.Module.
func (m *Model) TrainingStep(batch data.Batch, batchIdx int) trainer.StepOutput {
	logits := m.Forward(batch.Images, true)
	loss := metric.CrossEntropy(logits, batch.Masks, data.IgnoreLabel)
	logits.MustDrop()

	return trainer.StepOutput{
		Loss: loss,
		Log:  map[string]float64{"train_loss": loss.Float64Values()[0]},
	}
}

// ValidationStep implements trainer.Module.
func (m *Model) ValidationStep(batch data.Batch, batchIdx int) trainer.ValOutput {
	logits := m.Forward(batch.Images, false)
	loss := metric.CrossEntropy(logits, batch.Masks, data.IgnoreLabel)
	lossVal := loss.Float64Values()[0]
	loss.MustDrop()

	conf := metric.NewConfusion(int(m.cfg.NumClasses))
	if err := conf.AddTensors(logits, batch.Masks, data.IgnoreLabel); err != nil {
		log.Printf("validation batch %d: skip confusion matrix: %v\n", batchIdx, err)
		conf = nil
	}
	logits.MustDrop()

	return trainer.ValOutput{
		Log:       map[string]float64{"val_loss": lossVal},
		Size:      batch.Size(),
		Confusion: conf,
	}
}

// ValidationEpochEnd implements trainer.Module.
func (m *Model) ValidationEpochEnd(outputs []trainer.ValOutput) map[string]float64 {
	return AggregateValidation(outputs)
}

// AggregateValidation reduces validation step outputs.
//
// "val_loss" is the unweighted mean of per-batch losses; "val_loss_weighted"
// weights each batch by its size. "val_miou" and "val_acc" come from the
// summed confusion matrices when batches carry one.
func AggregateValidation(outputs []trainer.ValOutput) map[string]float64 {
	if len(outputs) == 0 {
		return map[string]float64{"val_loss": math.NaN()}
	}

	losses := make([]float64, len(outputs))
	sizes := make([]float64, len(outputs))
	var total *metric.Confusion
	for i, o := range outputs {
		losses[i] = o.Log["val_loss"]
		sizes[i] = float64(o.Size)
		if o.Confusion == nil {
			continue
		}
		if total == nil {
			total = metric.NewConfusion(o.Confusion.NumClasses())
		}
		if err := total.Merge(o.Confusion); err != nil {
			log.Printf("validation batch %d: skip confusion matrix: %v\n", i, err)
		}
	}

	metrics := map[string]float64{
		"val_loss": stat.Mean(losses, nil),
	}
	if floats.Sum(sizes) > 0 {
		metrics["val_loss_weighted"] = stat.Mean(losses, sizes)
	}
	if total != nil {
		metrics["val_miou"] = total.MeanIoU()
		metrics["val_acc"] = total.PixelAccuracy()
	}

	return metrics
}

// ConfigureOptimizers implements trainer.Module. It returns a new Adam
// optimizer over all network variables and a cosine annealing schedule with a
// period of 10 steps.
func (m *Model) ConfigureOptimizers() (*nn.Optimizer, *nn.LRScheduler, error) {
	opt, err := nn.DefaultAdamConfig().Build(m.vs, m.cfg.LR)
	if err != nil {
		return nil, nil, err
	}
	sched := nn.NewCosineAnnealingLR(opt, cosinePeriod, 0).Build()

	return opt, sched, nil
}
