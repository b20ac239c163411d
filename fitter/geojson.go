package fitter

import (
	"fmt"
	"io"
	"math"

	"github.com/kwv/robustfit/estimator"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// circleSegments is the number of edges of the dense ring a fitted circle
// starts from before it is simplified.
const circleSegments = 256

// displayPoint is the 2-D position drawn for a dataset row: the point
// itself, the x/y projection for planes, or the target of a correspondence.
func displayPoint(m Model, row []float64) orb.Point {
	if m == ModelRigid || m == ModelAffine {
		return orb.Point{row[2], row[3]}
	}
	return orb.Point{row[0], row[1]}
}

// splitPoints partitions the displayed points into inliers and outliers.
func splitPoints(res *FitResult) (inliers, outliers orb.MultiPoint) {
	in := res.InlierSet()
	inliers, outliers = orb.MultiPoint{}, orb.MultiPoint{}
	for i, row := range res.Points {
		p := displayPoint(res.Model, row)
		if in[i] {
			inliers = append(inliers, p)
		} else {
			outliers = append(outliers, p)
		}
	}
	return inliers, outliers
}

// dataBound is the bound of every displayed point and, for transforms, of
// the source points too.
func dataBound(res *FitResult) orb.Bound {
	var mp orb.MultiPoint
	for _, row := range res.Points {
		mp = append(mp, displayPoint(res.Model, row))
		if res.Model == ModelRigid || res.Model == ModelAffine {
			mp = append(mp, orb.Point{row[0], row[1]})
		}
	}
	return mp.Bound()
}

// ModelGeometry returns the fitted model as planar geometry clipped to
// bound: a segment for lines, a ring for circles, and the inlier
// displacements for transforms. Planes have no planar geometry.
func ModelGeometry(res *FitResult, bound orb.Bound) orb.Geometry {
	p := res.Parameters
	switch res.Model {
	case ModelLine:
		return lineSegment(p, bound)
	case ModelCircle:
		return circleRing(p, res.Threshold)
	case ModelRigid, ModelAffine:
		m, ok := estimator.MatrixFromParams(p)
		if !ok {
			return nil
		}
		var mls orb.MultiLineString
		for _, i := range res.Inliers {
			row := res.Points[i]
			mapped := estimator.TransformPoint(orb.Point{row[0], row[1]}, m)
			mls = append(mls, orb.LineString{{row[0], row[1]}, mapped})
		}
		return mls
	}
	return nil
}

// circleRing approximates the circle with a closed ring whose edges stay
// within a quarter of the agreement threshold of the true curve.
func circleRing(p []float64, threshold float64) orb.LineString {
	ring := make(orb.LineString, 0, circleSegments+1)
	for i := 0; i <= circleSegments; i++ {
		theta := 2 * math.Pi * float64(i%circleSegments) / circleSegments
		ring = append(ring, orb.Point{p[0] + p[2]*math.Cos(theta), p[1] + p[2]*math.Sin(theta)})
	}
	if threshold <= 0 {
		return ring
	}
	simplified := simplify.DouglasPeucker(threshold / 4).LineString(ring.Clone())
	if len(simplified) < 4 {
		return ring
	}
	return simplified
}

// lineSegment spans the part of the line that projects onto bound.
func lineSegment(p []float64, bound orb.Bound) orb.LineString {
	dx, dy := -p[1], p[0]
	origin := orb.Point{p[2], p[3]}
	corners := []orb.Point{bound.Min, bound.Max, {bound.Min[0], bound.Max[1]}, {bound.Max[0], bound.Min[1]}}

	tMin, tMax := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		t := (c[0]-origin[0])*dx + (c[1]-origin[1])*dy
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
	}
	return orb.LineString{
		{origin[0] + tMin*dx, origin[1] + tMin*dy},
		{origin[0] + tMax*dx, origin[1] + tMax*dy},
	}
}

// ResultToFeatureCollection exports a fit as GeoJSON: one MultiPoint feature
// for inliers, one for outliers and one for the model geometry.
func ResultToFeatureCollection(res *FitResult) (*geojson.FeatureCollection, error) {
	if len(res.Points) == 0 {
		return nil, fmt.Errorf("result for %s carries no points", res.DatasetID)
	}
	fc := geojson.NewFeatureCollection()
	inliers, outliers := splitPoints(res)

	in := geojson.NewFeature(inliers)
	in.ID = res.DatasetID + "/inliers"
	in.Properties["role"] = "inliers"
	in.Properties["count"] = len(inliers)
	fc.Append(in)

	out := geojson.NewFeature(outliers)
	out.ID = res.DatasetID + "/outliers"
	out.Properties["role"] = "outliers"
	out.Properties["count"] = len(outliers)
	fc.Append(out)

	var geom orb.Geometry = orb.Collection{}
	if g := ModelGeometry(res, dataBound(res)); g != nil {
		geom = g
	}
	model := geojson.NewFeature(geom)
	model.ID = res.DatasetID + "/model"
	model.Properties["role"] = "model"
	model.Properties["model"] = string(res.Model)
	model.Properties["parameters"] = res.Parameters
	model.Properties["summary"] = res.Summary
	model.Properties["inlierRatio"] = res.InlierRatio
	model.Properties["trials"] = res.Trials
	fc.Append(model)

	return fc, nil
}

// WriteGeoJSON writes the feature collection for res to w
func WriteGeoJSON(w io.Writer, res *FitResult) error {
	fc, err := ResultToFeatureCollection(res)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}
