// Command kitti trains and runs a UNet semantic segmentation model on the
// KITTI semantics dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/sugarme/gotch/nn"

	"github.com/sugarme/semseg/data/kitti"
	"github.com/sugarme/semseg/segment"
	"github.com/sugarme/semseg/trainer"
)

// flag variables
var (
	task       string
	seed       int64
	checkpoint string
	imageFile  string
	outFile    string
	opacity    uint
)

func main() {
	trainerCfg := trainer.DefaultConfig()
	modelCfg := segment.DefaultConfig()
	dataCfg := kitti.DefaultConfig()

	fs := newFlagSet(os.Args[0], &trainerCfg, &modelCfg, &dataCfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch task {
	case "train":
		err = runTrain(ctx, trainerCfg, modelCfg, dataCfg)
	case "predict":
		err = runPredict(trainerCfg, modelCfg, dataCfg)
	case "model":
		err = runCheckModel(trainerCfg, modelCfg)
	default:
		err = fmt.Errorf("unknown task %q. Expected 'train', 'predict' or 'model'", task)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// newFlagSet merges trainer, model and data options with task flags.
func newFlagSet(name string, trainerCfg *trainer.Config, modelCfg *segment.Config, dataCfg *kitti.Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	trainerCfg.RegisterFlags(fs)
	modelCfg.RegisterFlags(fs)
	dataCfg.RegisterFlags(fs)
	fs.StringVar(&task, "task", "train", "specify task to run: train | predict | model")
	fs.Int64Var(&seed, "seed", 1234, "random seed for weight initialization")
	fs.StringVar(&checkpoint, "checkpoint", "", "model weight '.ot' file to load")
	fs.StringVar(&imageFile, "image", "", "image to segment (predict)")
	fs.StringVar(&outFile, "out", "./prediction.png", "output mask file (predict)")
	fs.UintVar(&opacity, "opacity", 128, "mask opacity on the overlay image, 0-255 (predict)")

	return fs
}

func runTrain(ctx context.Context, trainerCfg trainer.Config, modelCfg segment.Config, dataCfg kitti.Config) error {
	dm, err := kitti.NewDataModule(dataCfg)
	if err != nil {
		return err
	}
	nTrain, nVal, nTest := dm.Sizes()
	log.Printf("samples: train=%d val=%d test=%d\n", nTrain, nVal, nTest)

	model, err := segment.New(modelCfg, trainerCfg.Device(), seed)
	if err != nil {
		return err
	}
	if checkpoint != "" {
		if err := loadWeights(model.VarStore(), checkpoint); err != nil {
			return err
		}
	}

	tr, err := trainer.New(trainerCfg)
	if err != nil {
		return err
	}
	if err := tr.Fit(ctx, model, dm); err != nil {
		return err
	}
	if best, ok := tr.History.Best(); ok {
		log.Printf("best epoch %d: val_loss=%.4f mIoU=%.4f\n", best.Epoch, best.ValLoss, best.ValMIoU)
	}

	return nil
}

func loadWeights(vs *nn.VarStore, fpath string) error {
	modelPath, err := filepath.Abs(fpath)
	if err != nil {
		return err
	}
	if err := vs.Load(modelPath); err != nil {
		return fmt.Errorf("load weights %q: %w", modelPath, err)
	}
	return nil
}

// runCheckModel prints network variables and their shapes.
func runCheckModel(trainerCfg trainer.Config, modelCfg segment.Config) error {
	model, err := segment.New(modelCfg, trainerCfg.Device(), seed)
	if err != nil {
		return err
	}
	if checkpoint != "" {
		if err := loadWeights(model.VarStore(), checkpoint); err != nil {
			return err
		}
	}
	printVars(model.VarStore())

	return nil
}

func printVars(vs *nn.VarStore) {
	vars := vs.Variables()
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	var total int64
	for _, n := range names {
		x := vars[n]
		size := x.MustSize()
		numel := int64(1)
		for _, d := range size {
			numel *= d
		}
		total += numel
		fmt.Printf("%v \t\t %v\n", n, size)
	}
	fmt.Printf("Num of variables: %v - parameters: %v\n", len(names), total)
}
