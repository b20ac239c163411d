package fitter

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/tdewolff/canvas"
)

func TestRenderer_RenderToSVG(t *testing.T) {
	r := NewRenderer(sampleResult("floor"))

	var buf bytes.Buffer
	if err := r.RenderToSVG(&buf); err != nil {
		t.Fatalf("Failed to render to SVG: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<svg")) {
		t.Errorf("Output does not contain <svg tag")
	}
	if !bytes.Contains(buf.Bytes(), []byte("path")) {
		t.Errorf("Output does not contain path elements")
	}
}

func TestRenderer_RenderToPNG(t *testing.T) {
	for _, legend := range []bool{true, false} {
		r := NewRenderer(sampleResult("floor"))
		r.Legend = legend
		r.Resolution = canvas.DPI(72)

		var buf bytes.Buffer
		if err := r.RenderToPNG(&buf); err != nil {
			t.Fatalf("Failed to render to PNG (legend=%v): %v", legend, err)
		}
		cfg, err := png.DecodeConfig(&buf)
		if err != nil {
			t.Fatalf("Output is not a PNG: %v", err)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			t.Errorf("PNG has zero size %dx%d", cfg.Width, cfg.Height)
		}
	}
}

func TestRenderer_Transform(t *testing.T) {
	res := &FitResult{
		DatasetID:  "scan",
		Model:      ModelAffine,
		Parameters: []float64{1, 0, 5, 0, 1, 0},
		Inliers:    []int{0, 1},
		Total:      3,
		Points:     [][]float64{{0, 0, 5, 0}, {1, 1, 6, 1}, {2, 2, 9, 9}},
	}

	var buf bytes.Buffer
	if err := NewRenderer(res).RenderToSVG(&buf); err != nil {
		t.Fatalf("Failed to render transform: %v", err)
	}
}

func TestRenderer_SinglePoint(t *testing.T) {
	res := &FitResult{
		DatasetID:  "dot",
		Model:      ModelCircle,
		Parameters: []float64{0, 0, 1},
		Inliers:    []int{0},
		Total:      1,
		Points:     [][]float64{{1, 0}},
	}
	var buf bytes.Buffer
	if err := NewRenderer(res).RenderToSVG(&buf); err != nil {
		t.Fatalf("zero extent should still render: %v", err)
	}
}

func TestRenderer_NotRenderable(t *testing.T) {
	plane := &FitResult{DatasetID: "roof", Model: ModelPlane, Points: [][]float64{{0, 0, 0}}, Total: 1}
	empty := &FitResult{DatasetID: "none", Model: ModelLine}

	for name, res := range map[string]*FitResult{"plane": plane, "empty": empty, "nil": nil} {
		var buf bytes.Buffer
		if err := NewRenderer(res).RenderToSVG(&buf); !errors.Is(err, ErrNotRenderable) {
			t.Errorf("%s: RenderToSVG error = %v, want ErrNotRenderable", name, err)
		}
		if err := NewRenderer(res).RenderToPNG(&buf); !errors.Is(err, ErrNotRenderable) {
			t.Errorf("%s: RenderToPNG error = %v, want ErrNotRenderable", name, err)
		}
	}
}
