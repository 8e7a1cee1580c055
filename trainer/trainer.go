// Package trainer fits a Module on the batches of a DataModule.
package trainer

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
	"gonum.org/v1/gonum/stat"

	"github.com/sugarme/semseg/data"
	"github.com/sugarme/semseg/report"
	"github.com/sugarme/semseg/sysinfo"
)

// Files written to Config.DefaultRootDir.
const (
	BestCheckpoint = "best.ot"
	LastCheckpoint = "last.ot"
	MetricsFile    = "metrics.csv"
	LossPlotFile   = "loss.png"
)

// Trainer runs the training loop.
type Trainer struct {
	cfg     Config
	History *report.History

	step        int // global train step
	bestValLoss float64
	stale       int // epochs since val_loss improved
}

// New creates a Trainer.
func New(cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Trainer{
		cfg:         cfg,
		History:     &report.History{},
		bestValLoss: math.Inf(1),
	}, nil
}

// BestValLoss returns lowest validation loss seen so far.
func (t *Trainer) BestValLoss() float64 {
	return t.bestValLoss
}

// Fit trains m on dm for up to MaxEpochs epochs.
//
// Panics raised inside steps are returned as errors. Fit returns ctx.Err()
// when ctx is cancelled between batches.
func (t *Trainer) Fit(ctx context.Context, m Module, dm DataModule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trainer: %v", r)
		}
	}()

	if err := os.MkdirAll(t.cfg.DefaultRootDir, 0o755); err != nil {
		return err
	}

	opt, sched, err := m.ConfigureOptimizers()
	if err != nil {
		return fmt.Errorf("configure optimizers: %w", err)
	}
	trainDL, err := dm.TrainLoader()
	if err != nil {
		return fmt.Errorf("train loader: %w", err)
	}
	valDL, err := dm.ValLoader()
	if err != nil {
		return fmt.Errorf("validation loader: %w", err)
	}

	vs := m.VarStore()
	device := vs.Device()
	log.Printf("training on %v, %s\n", device, sysinfo.CPU())

	for e := 0; e < t.cfg.MaxEpochs; e++ {
		start := time.Now()
		lr := currentLR(opt)

		tloss, err := t.trainEpoch(ctx, m, opt, trainDL, device)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", e, err)
		}
		if sched != nil {
			sched.Step()
		}

		metrics, err := t.validate(ctx, m, valDL, device)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", e, err)
		}

		rec := report.Record{
			Epoch:     e,
			TrainLoss: tloss,
			ValLoss:   valueOrNaN(metrics, "val_loss"),
			ValMIoU:   valueOrNaN(metrics, "val_miou"),
			ValAcc:    valueOrNaN(metrics, "val_acc"),
			LR:        lr,
			Seconds:   time.Since(start).Seconds(),
		}
		t.History.Add(rec)

		fmt.Printf("Epoch %02d\t train loss: %6.4f\t valid loss: %6.4f\t mIoU: %6.4f\t lr: %.6f\t Taken time: %0.2fMin\n",
			e, rec.TrainLoss, rec.ValLoss, rec.ValMIoU, rec.LR, time.Since(start).Minutes())
		logMemory()

		if rec.ValLoss < t.bestValLoss {
			t.bestValLoss = rec.ValLoss
			t.stale = 0
			if err := vs.Save(t.path(BestCheckpoint)); err != nil {
				return fmt.Errorf("save best checkpoint: %w", err)
			}
		} else {
			t.stale++
			if t.cfg.Patience > 0 && t.stale >= t.cfg.Patience {
				log.Printf("early stopping: val_loss has not improved for %d epochs (best %.4f)\n", t.stale, t.bestValLoss)
				break
			}
		}
	}

	if err := vs.Save(t.path(LastCheckpoint)); err != nil {
		return fmt.Errorf("save last checkpoint: %w", err)
	}
	if err := t.History.Save(t.path(MetricsFile)); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	if err := t.History.Plot(t.path(LossPlotFile)); err != nil {
		log.Printf("skip loss plot: %v\n", err)
	}

	return nil
}

func (t *Trainer) trainEpoch(ctx context.Context, m Module, opt *nn.Optimizer, dl data.Loader, device gotch.Device) (float64, error) {
	dl.Reset()
	var losses []float64
	for idx := 0; dl.HasNext(); idx++ {
		if t.cfg.LimitTrainBatches > 0 && idx >= t.cfg.LimitTrainBatches {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		batch, err := dl.Next()
		if err != nil {
			return 0, fmt.Errorf("train batch %d: %w", idx, err)
		}
		batch = batch.To(device)

		out := m.TrainingStep(batch, idx)
		err = opt.BackwardStep(out.Loss)
		out.Loss.MustDrop()
		batch.Drop()
		if err != nil {
			return 0, fmt.Errorf("train batch %d: backward: %w", idx, err)
		}

		loss := out.Log["train_loss"]
		losses = append(losses, loss)
		t.step++
		if t.step%t.cfg.LogEvery == 0 {
			log.Printf("step=%d batch=%d train_loss=%.4f\n", t.step, idx, loss)
		}
	}

	if len(losses) == 0 {
		return math.NaN(), nil
	}
	return stat.Mean(losses, nil), nil
}

func (t *Trainer) validate(ctx context.Context, m Module, dl data.Loader, device gotch.Device) (map[string]float64, error) {
	dl.Reset()
	var (
		outputs []ValOutput
		err     error
	)
	for idx := 0; dl.HasNext(); idx++ {
		if t.cfg.LimitValBatches > 0 && idx >= t.cfg.LimitValBatches {
			break
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		var batch data.Batch
		batch, err = dl.Next()
		if err != nil {
			return nil, fmt.Errorf("validation batch %d: %w", idx, err)
		}
		batch = batch.To(device)
		ts.NoGrad(func() {
			outputs = append(outputs, m.ValidationStep(batch, idx))
		})
		batch.Drop()
	}

	return m.ValidationEpochEnd(outputs), nil
}

func (t *Trainer) path(name string) string {
	return filepath.Join(t.cfg.DefaultRootDir, name)
}

func currentLR(opt *nn.Optimizer) float64 {
	lrs := opt.GetLRs()
	if len(lrs) == 0 {
		return math.NaN()
	}
	return lrs[0]
}

func valueOrNaN(metrics map[string]float64, key string) float64 {
	if v, ok := metrics[key]; ok {
		return v
	}
	return math.NaN()
}

func logMemory() {
	si, err := sysinfo.Read()
	if err != nil {
		return
	}
	log.Printf("RAM used: %0.0f/%0.0f MiB\n", si.UsedRAM(), si.TotalRAM())
}
