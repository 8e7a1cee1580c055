package trainer

import (
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/data"
	"github.com/sugarme/semseg/metric"
)

// StepOutput is the result of a training step.
type StepOutput struct {
	Loss *ts.Tensor         // scalar loss to backpropagate
	Log  map[string]float64 // values for logging, e.g. "train_loss"
}

// ValOutput is the result of a validation step.
type ValOutput struct {
	Log       map[string]float64 // e.g. "val_loss"
	Size      int64              // number of samples in the batch
	Confusion *metric.Confusion  // optional pixel confusion counts
}

// Module is a model that can be fitted by Trainer.
type Module interface {
	// TrainingStep computes loss of one batch. It must not update weights.
	TrainingStep(batch data.Batch, batchIdx int) StepOutput
	// ValidationStep computes loss of one batch. It is called under ts.NoGrad.
	ValidationStep(batch data.Batch, batchIdx int) ValOutput
	// ValidationEpochEnd reduces outputs of one validation pass. The result
	// must hold "val_loss".
	ValidationEpochEnd(outputs []ValOutput) map[string]float64
	// ConfigureOptimizers is called once before training.
	ConfigureOptimizers() (*nn.Optimizer, *nn.LRScheduler, error)
	// VarStore returns the variables to checkpoint.
	VarStore() *nn.VarStore
}

// DataModule provides train and validation loaders.
type DataModule interface {
	TrainLoader() (data.Loader, error)
	ValLoader() (data.Loader, error)
}
