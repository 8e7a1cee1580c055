package unet_test

import (
	"reflect"
	"testing"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/semseg/unet"
)

func TestUNetOutputShape(t *testing.T) {
	tests := []struct {
		name     string
		layers   int64
		bilinear bool
		h, w     int64
	}{
		{"transposed", 3, false, 32, 32},
		{"bilinear", 3, true, 32, 32},
		{"transposed-odd", 3, false, 18, 22},
		{"bilinear-odd", 3, true, 19, 21},
		{"single-layer", 1, false, 9, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := nn.NewVarStore(gotch.CPU)
			cfg := unet.Config{
				NumClasses:    5,
				InChannels:    3,
				NumLayers:     tt.layers,
				FeaturesStart: 4,
				Bilinear:      tt.bilinear,
			}
			net, err := unet.New(vs.Root(), cfg)
			if err != nil {
				t.Fatal(err)
			}

			image := ts.MustRand([]int64{2, 3, tt.h, tt.w}, gotch.Float, gotch.CPU)
			var logit *ts.Tensor
			ts.NoGrad(func() {
				logit = net.ForwardT(image, false)
			})

			want := []int64{2, 5, tt.h, tt.w}
			got := logit.MustSize()
			if !reflect.DeepEqual(want, got) {
				t.Errorf("Want shape: %v\n", want)
				t.Errorf("Got shape: %v\n", got)
			}

			logit.MustDrop()
			image.MustDrop()
		})
	}
}

func TestNewUNetInvalidConfig(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)

	cfg := unet.DefaultConfig()
	cfg.NumLayers = 0
	if _, err := unet.New(vs.Root(), cfg); err == nil {
		t.Errorf("Expected error for num_layers = 0")
	}

	cfg = unet.DefaultConfig()
	cfg.NumClasses = 0
	if _, err := unet.New(vs.Root(), cfg); err == nil {
		t.Errorf("Expected error for num_classes = 0")
	}
}

func TestUpsampleWeightLayout(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := unet.Config{NumClasses: 2, InChannels: 3, NumLayers: 3, FeaturesStart: 4}
	if _, err := unet.New(vs.Root(), cfg); err != nil {
		t.Fatal(err)
	}

	vars := vs.Variables()
	tests := []struct {
		name string
		want []int64
	}{
		// deepest level: 16 => 8 channels
		{"decoder.up1.upsample.weight", []int64{16, 8, 2, 2}},
		{"decoder.up1.upsample.bias", []int64{8}},
		{"decoder.up2.upsample.weight", []int64{8, 4, 2, 2}},
	}
	for _, tt := range tests {
		x, ok := vars[tt.name]
		if !ok {
			t.Errorf("missing variable %q", tt.name)
			continue
		}
		if got := x.MustSize(); !reflect.DeepEqual(tt.want, got) {
			t.Errorf("%v: want shape %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestUNetTransposedBackward(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := unet.Config{NumClasses: 3, InChannels: 3, NumLayers: 2, FeaturesStart: 4}
	net, err := unet.New(vs.Root(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	image := ts.MustRand([]int64{1, 3, 8, 8}, gotch.Float, gotch.CPU)
	logit := net.ForwardT(image, true)
	loss := logit.MustMean(gotch.Float, true)
	loss.MustBackward()

	ws, ok := vs.Variables()["decoder.up1.upsample.weight"]
	if !ok {
		t.Fatal("missing transposed convolution weight")
	}
	grad := ws.MustGrad(false)
	if !reflect.DeepEqual(grad.MustSize(), []int64{8, 4, 2, 2}) {
		t.Errorf("unexpected gradient shape %v", grad.MustSize())
	}
	grad.MustDrop()
	loss.MustDrop()
	image.MustDrop()
}
