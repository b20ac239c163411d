package fitter

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrNotRenderable is returned for results that have no planar drawing.
var ErrNotRenderable = errors.New("result cannot be rendered in 2-D")

// Renderer draws a fit result as a scatter plot with the model overlaid
type Renderer struct {
	Result      *FitResult
	Size        float64           // Length of the longer plot side in millimeters
	Padding     float64           // Padding around the plot in millimeters
	PointRadius float64           // Marker radius in millimeters
	Resolution  canvas.Resolution // Resolution for PNG output (default: 150 DPI)
	Legend      bool              // Draw a text legend on PNG output

	InlierColor  color.RGBA
	OutlierColor color.RGBA
	ModelColor   color.RGBA
}

// NewRenderer creates a renderer with default styling
func NewRenderer(res *FitResult) *Renderer {
	return &Renderer{
		Result:       res,
		Size:         200,
		Padding:      10,
		PointRadius:  0.8,
		Resolution:   canvas.DPI(150),
		Legend:       true,
		InlierColor:  color.RGBA{0, 0, 139, 255},
		OutlierColor: color.RGBA{178, 34, 34, 255},
		ModelColor:   color.RGBA{0, 128, 0, 255},
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// plotFrame maps data coordinates onto the canvas.
type plotFrame struct {
	bound         orb.Bound
	scale         float64
	padding       float64
	width, height float64
}

func (f plotFrame) toCanvas(p orb.Point) (float64, float64) {
	return (p[0]-f.bound.Min[0])*f.scale + f.padding, (p[1]-f.bound.Min[1])*f.scale + f.padding
}

func (r *Renderer) frame() (plotFrame, error) {
	res := r.Result
	if res == nil || len(res.Points) == 0 {
		return plotFrame{}, fmt.Errorf("%w: no points", ErrNotRenderable)
	}
	if !res.Model.Planar() {
		return plotFrame{}, fmt.Errorf("%w: %s model", ErrNotRenderable, res.Model)
	}

	b := dataBound(res)
	extent := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	if extent == 0 {
		extent = 1
	}
	// Keep the model visible when it sits just outside the data.
	b = b.Pad(extent * 0.05)
	extent *= 1.1

	scale := r.Size / extent
	return plotFrame{
		bound:   b,
		scale:   scale,
		padding: r.Padding,
		width:   (b.Max[0]-b.Min[0])*scale + 2*r.Padding,
		height:  (b.Max[1]-b.Min[1])*scale + 2*r.Padding,
	}, nil
}

// RenderToSVG writes the plot as SVG
func (r *Renderer) RenderToSVG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}
	svgRenderer := svg.New(w, f.width, f.height, nil)
	r.renderToCanvas(svgRenderer, f)
	return svgRenderer.Close()
}

// RenderToPNG writes the plot as PNG, with a legend when enabled
func (r *Renderer) RenderToPNG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}
	rast := rasterizer.New(f.width, f.height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, f)

	if !r.Legend {
		return png.Encode(w, rast)
	}
	img := image.NewRGBA(rast.Bounds())
	draw.Draw(img, img.Bounds(), rast, rast.Bounds().Min, draw.Src)
	r.drawLegend(img)
	return png.Encode(w, img)
}

func (r *Renderer) renderToCanvas(renderer canvasRenderer, f plotFrame) {
	res := r.Result

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(f.width, f.height), bgStyle, canvas.Identity)

	// Model first so the markers stay visible on top of it
	modelStyle := canvas.DefaultStyle
	modelStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	modelStyle.Stroke = canvas.Paint{Color: r.ModelColor}
	modelStyle.StrokeWidth = 0.6
	if res.Model == ModelRigid || res.Model == ModelAffine {
		modelStyle.StrokeWidth = 0.3
		modelStyle.Dashes = []float64{1.0, 1.0}
	}
	switch g := ModelGeometry(res, f.bound).(type) {
	case orb.LineString:
		renderer.RenderPath(linePath(g, f), modelStyle, canvas.Identity)
	case orb.MultiLineString:
		for _, ls := range g {
			renderer.RenderPath(linePath(ls, f), modelStyle, canvas.Identity)
		}
	}

	inliers, outliers := splitPoints(res)
	r.renderMarkers(renderer, f, outliers, r.OutlierColor)
	r.renderMarkers(renderer, f, inliers, r.InlierColor)
}

func (r *Renderer) renderMarkers(renderer canvasRenderer, f plotFrame, points orb.MultiPoint, c color.RGBA) {
	style := canvas.DefaultStyle
	style.Fill = canvas.Paint{Color: c}
	style.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, p := range points {
		cx, cy := f.toCanvas(p)
		renderer.RenderPath(canvas.Circle(r.PointRadius).Translate(cx, cy), style, canvas.Identity)
	}
}

func linePath(ls orb.LineString, f plotFrame) *canvas.Path {
	cp := &canvas.Path{}
	for i, p := range ls {
		x, y := f.toCanvas(p)
		if i == 0 {
			cp.MoveTo(x, y)
		} else {
			cp.LineTo(x, y)
		}
	}
	return cp
}

// drawLegend writes the model summary in the top-left corner
func (r *Renderer) drawLegend(img *image.RGBA) {
	res := r.Result
	lines := []string{
		fmt.Sprintf("%s %s", res.DatasetID, res.Model),
		res.Summary,
		fmt.Sprintf("inliers %d/%d  trials %d", len(res.Inliers), res.Total, res.Trials),
	}
	y := 16
	for _, line := range lines {
		drawText(img, 8, y, line, color.RGBA{0, 0, 0, 255})
		y += 15
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
