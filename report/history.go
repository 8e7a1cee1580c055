package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Record holds metrics of one training epoch.
type Record struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
	ValMIoU   float64
	ValAcc    float64
	LR        float64
	Seconds   float64
}

// History is a sequence of epoch records.
type History struct {
	Records []Record
}

// Add appends r.
func (h *History) Add(r Record) {
	h.Records = append(h.Records, r)
}

// Len returns number of records.
func (h *History) Len() int {
	return len(h.Records)
}

// Best returns the record with lowest validation loss.
func (h *History) Best() (Record, bool) {
	var (
		best Record
		ok   bool
	)
	for _, r := range h.Records {
		if math.IsNaN(r.ValLoss) {
			continue
		}
		if !ok || r.ValLoss < best.ValLoss {
			best, ok = r, true
		}
	}
	return best, ok
}

// Columns of the CSV written by WriteCSV.
var Columns = []string{"Epoch", "TrainLoss", "ValLoss", "ValMIoU", "ValAcc", "LR", "Seconds"}

// WriteCSV writes records as CSV with a header row. Floats are written in
// the shortest form that parses back to the same value.
func (h *History) WriteCSV(w io.Writer) error {
	if len(h.Records) == 0 {
		return fmt.Errorf("history is empty")
	}

	records := [][]string{Columns}
	for _, r := range h.Records {
		records = append(records, []string{
			strconv.Itoa(r.Epoch),
			formatFloat(r.TrainLoss),
			formatFloat(r.ValLoss),
			formatFloat(r.ValMIoU),
			formatFloat(r.ValAcc),
			formatFloat(r.LR),
			formatFloat(r.Seconds),
		})
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Save writes records to a CSV file.
func (h *History) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := h.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads records written by WriteCSV.
func ReadCSV(r io.Reader) (*History, error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true))
	if df.Err != nil {
		return nil, df.Err
	}

	epochs, err := df.Col("Epoch").Int()
	if err != nil {
		return nil, fmt.Errorf("column Epoch: %w", err)
	}
	trainLoss := df.Col("TrainLoss").Float()
	valLoss := df.Col("ValLoss").Float()
	valMIoU := df.Col("ValMIoU").Float()
	valAcc := df.Col("ValAcc").Float()
	lr := df.Col("LR").Float()
	seconds := df.Col("Seconds").Float()

	h := &History{}
	for i := range epochs {
		h.Add(Record{
			Epoch:     epochs[i],
			TrainLoss: trainLoss[i],
			ValLoss:   valLoss[i],
			ValMIoU:   valMIoU[i],
			ValAcc:    valAcc[i],
			LR:        lr[i],
			Seconds:   seconds[i],
		})
	}

	return h, nil
}

// Load reads records from a CSV file.
func Load(filename string) (*History, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(f)
}

// Plot saves train and validation loss curves to an image file. The format
// follows the file extension (.png, .svg, .pdf, ...).
func (h *History) Plot(filename string) error {
	p := plot.New()
	p.Title.Text = "Loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "cross entropy"

	var train, val plotter.XYs
	for _, r := range h.Records {
		if !math.IsNaN(r.TrainLoss) && !math.IsInf(r.TrainLoss, 0) {
			train = append(train, plotter.XY{X: float64(r.Epoch), Y: r.TrainLoss})
		}
		if !math.IsNaN(r.ValLoss) && !math.IsInf(r.ValLoss, 0) {
			val = append(val, plotter.XY{X: float64(r.Epoch), Y: r.ValLoss})
		}
	}
	if len(train) == 0 && len(val) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	var lines []interface{}
	if len(train) > 0 {
		lines = append(lines, "train", train)
	}
	if len(val) > 0 {
		lines = append(lines, "valid", val)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
