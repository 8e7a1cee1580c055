package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/sugarme/semseg/data/kitti"
	"github.com/sugarme/semseg/segment"
	"github.com/sugarme/semseg/trainer"
)

// runPredict segments one image and writes a colour mask and an overlay of
// the mask on the (resized) input image.
func runPredict(trainerCfg trainer.Config, modelCfg segment.Config, dataCfg kitti.Config) error {
	if imageFile == "" {
		return fmt.Errorf("predict: missing -image flag")
	}
	if checkpoint == "" {
		return fmt.Errorf("predict: missing -checkpoint flag")
	}
	if opacity > 255 {
		return fmt.Errorf("predict: opacity must be in [0, 255] (got %v)", opacity)
	}

	model, err := segment.New(modelCfg, trainerCfg.Device(), seed)
	if err != nil {
		return err
	}
	if err := loadWeights(model.VarStore(), checkpoint); err != nil {
		return err
	}

	w, h := dataCfg.ImgWidth, dataCfg.ImgHeight
	x, resized, err := kitti.LoadImage(imageFile, w, h)
	if err != nil {
		return err
	}
	input := x.MustUnsqueeze(0, true).MustTo(model.VarStore().Device(), true)
	classes := model.PredictClasses(input)
	input.MustDrop()
	values := classes.Int64Values()
	classes.MustDrop()

	mask, err := kitti.Colorize(values, w, h)
	if err != nil {
		return err
	}
	if err := kitti.SavePNG(mask, outFile); err != nil {
		return err
	}

	overlayFile := strings.TrimSuffix(outFile, filepath.Ext(outFile)) + "-overlay.png"
	if err := kitti.SavePNG(kitti.Overlay(resized, mask, uint8(opacity)), overlayFile); err != nil {
		return err
	}
	log.Printf("saved %v and %v\n", outFile, overlayFile)

	return nil
}
