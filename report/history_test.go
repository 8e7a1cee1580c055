package report_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sugarme/semseg/report"
)

func sampleHistory() *report.History {
	h := &report.History{}
	h.Add(report.Record{Epoch: 0, TrainLoss: 2.5, ValLoss: 2.25, ValMIoU: 0.1, ValAcc: 0.4, LR: 0.01, Seconds: 12.5})
	h.Add(report.Record{Epoch: 1, TrainLoss: 1.5, ValLoss: 1.75, ValMIoU: 0.2, ValAcc: 0.6, LR: 0.0075, Seconds: 11})
	h.Add(report.Record{Epoch: 2, TrainLoss: 1.0, ValLoss: 2.0, ValMIoU: 0.25, ValAcc: 0.7, LR: 0.005, Seconds: 11.5})
	return h
}

func TestBest(t *testing.T) {
	h := sampleHistory()
	best, ok := h.Best()
	if !ok {
		t.Fatal("expected a best record")
	}
	if best.Epoch != 1 {
		t.Errorf("Want best epoch 1, got %v", best.Epoch)
	}

	empty := &report.History{}
	empty.Add(report.Record{ValLoss: math.NaN()})
	if _, ok := empty.Best(); ok {
		t.Errorf("NaN validation loss must not be selected")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	h := sampleHistory()

	var buf bytes.Buffer
	if err := h.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	want := "Epoch,TrainLoss,ValLoss,ValMIoU,ValAcc,LR,Seconds"
	if header != want {
		t.Errorf("Want header %q, got %q", want, header)
	}

	got, err := report.ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != h.Len() {
		t.Fatalf("Want %v records, got %v", h.Len(), got.Len())
	}
	for i := range h.Records {
		w, g := h.Records[i], got.Records[i]
		if w.Epoch != g.Epoch || math.Abs(w.ValLoss-g.ValLoss) > 1e-9 || math.Abs(w.LR-g.LR) > 1e-9 {
			t.Errorf("record %d: want %+v, got %+v", i, w, g)
		}
	}
}

func TestCSVKeepsPrecision(t *testing.T) {
	h := &report.History{}
	h.Add(report.Record{Epoch: 0, TrainLoss: 1.2345678901234, ValLoss: math.NaN(), ValMIoU: 0.1, ValAcc: 0.5, LR: 3.0842513753404e-7, Seconds: 1})
	h.Add(report.Record{Epoch: 1, TrainLoss: 0.987654321, ValLoss: 2, ValMIoU: 0.2, ValAcc: 0.6, LR: 1e-9, Seconds: 2.5})

	var buf bytes.Buffer
	if err := h.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := report.ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Fatalf("Want 2 records, got %v", got.Len())
	}
	for i, w := range h.Records {
		g := got.Records[i]
		if g.LR != w.LR || g.TrainLoss != w.TrainLoss {
			t.Errorf("record %d: want LR %v train loss %v, got LR %v train loss %v", i, w.LR, w.TrainLoss, g.LR, g.TrainLoss)
		}
	}
	if !math.IsNaN(got.Records[0].ValLoss) {
		t.Errorf("Want NaN val loss, got %v", got.Records[0].ValLoss)
	}
}

func TestWriteEmpty(t *testing.T) {
	h := &report.History{}
	var buf bytes.Buffer
	if err := h.WriteCSV(&buf); err == nil {
		t.Errorf("expected error for empty history")
	}
}

func TestSaveAndPlot(t *testing.T) {
	dir := t.TempDir()
	h := sampleHistory()

	csvFile := filepath.Join(dir, "metrics.csv")
	if err := h.Save(csvFile); err != nil {
		t.Fatal(err)
	}
	loaded, err := report.Load(csvFile)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 3 {
		t.Errorf("Want 3 records, got %v", loaded.Len())
	}

	pngFile := filepath.Join(dir, "loss.png")
	if err := h.Plot(pngFile); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(pngFile)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Errorf("empty plot file")
	}
}

func TestPlotNothing(t *testing.T) {
	h := &report.History{}
	h.Add(report.Record{TrainLoss: math.NaN(), ValLoss: math.NaN()})
	if err := h.Plot(filepath.Join(t.TempDir(), "loss.png")); err == nil {
		t.Errorf("expected error when there is nothing to plot")
	}
}
