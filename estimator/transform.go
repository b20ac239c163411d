package estimator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AffineMatrix for 2D transforms: x' = ax + by + tx, y' = cx + dy + ty
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// Params flattens the matrix into the parameter vector layout used by the
// Rigid and Affine estimators: [a, b, tx, c, d, ty].
func (m AffineMatrix) Params() []float64 {
	return []float64{m.A, m.B, m.Tx, m.C, m.D, m.Ty}
}

// MatrixFromParams is the inverse of AffineMatrix.Params. It returns false
// when params does not hold six values.
func MatrixFromParams(params []float64) (AffineMatrix, bool) {
	if len(params) != 6 {
		return AffineMatrix{}, false
	}
	return AffineMatrix{A: params[0], B: params[1], Tx: params[2], C: params[3], D: params[4], Ty: params[5]}, true
}

// RotationDegrees extracts the rotation component via atan2(C, A).
func (m AffineMatrix) RotationDegrees() float64 {
	return math.Atan2(m.C, m.A) * 180 / math.Pi
}

// TransformPoint applies an affine transform to a point
func TransformPoint(p orb.Point, m AffineMatrix) orb.Point {
	return orb.Point{
		m.A*p[0] + m.B*p[1] + m.Tx,
		m.C*p[0] + m.D*p[1] + m.Ty,
	}
}

// MultiplyMatrices composes two affine transforms: result = m1 * m2
// Applying result is equivalent to applying m2 first, then m1
func MultiplyMatrices(m1, m2 AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m1.A*m2.A + m1.B*m2.C,
		B:  m1.A*m2.B + m1.B*m2.D,
		Tx: m1.A*m2.Tx + m1.B*m2.Ty + m1.Tx,
		C:  m1.C*m2.A + m1.D*m2.C,
		D:  m1.C*m2.B + m1.D*m2.D,
		Ty: m1.C*m2.Tx + m1.D*m2.Ty + m1.Ty,
	}
}

// InvertMatrix computes the inverse of an affine transform.
// Returns false if the matrix is singular (determinant ~= 0)
func InvertMatrix(m AffineMatrix) (AffineMatrix, bool) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-10 {
		return Identity(), false
	}

	invDet := 1.0 / det
	return AffineMatrix{
		A:  m.D * invDet,
		B:  -m.B * invDet,
		Tx: (m.B*m.Ty - m.D*m.Tx) * invDet,
		C:  -m.C * invDet,
		D:  m.A * invDet,
		Ty: (m.C*m.Tx - m.A*m.Ty) * invDet,
	}, true
}

// Translation creates a translation-only transform
func Translation(tx, ty float64) AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: tx, C: 0, D: 1, Ty: ty}
}

// Rotation creates a rotation transform (angle in radians, around origin)
func Rotation(angle float64) AffineMatrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return AffineMatrix{A: cos, B: -sin, Tx: 0, C: sin, D: cos, Ty: 0}
}

// CreateRotationTranslation creates a combined rotation + translation transform
// Rotation is applied first (around origin), then translation
func CreateRotationTranslation(degrees, tx, ty float64) AffineMatrix {
	rot := Rotation(degrees * math.Pi / 180.0)
	rot.Tx, rot.Ty = tx, ty
	return rot
}

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 orb.Point) float64 {
	return planar.Distance(p1, p2)
}

// Centroid calculates the center of mass of a set of points
func Centroid(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p[0]
		sumY += p[1]
	}
	n := float64(len(points))
	return orb.Point{sumX / n, sumY / n}
}

// rigidTransform computes the best rigid transform (rotation + translation,
// no scale) using 2-D Procrustes analysis. ok is false when the source points
// carry no rotational information (all coincident).
func rigidTransform(source, target []orb.Point) (AffineMatrix, bool) {
	srcCentroid := Centroid(source)
	tgtCentroid := Centroid(target)

	// Cross-covariance H = src^T * tgt over the centred sets
	var h11, h12, h21, h22, spread float64
	for i := range source {
		sx := source[i][0] - srcCentroid[0]
		sy := source[i][1] - srcCentroid[1]
		tx := target[i][0] - tgtCentroid[0]
		ty := target[i][1] - tgtCentroid[1]

		h11 += sx * tx
		h12 += sx * ty
		h21 += sy * tx
		h22 += sy * ty
		spread += sx*sx + sy*sy
	}
	if spread < epsilon*epsilon {
		return Identity(), false
	}

	// For 2D the optimal rotation is theta = atan2(h12 - h21, h11 + h22)
	theta := math.Atan2(h12-h21, h11+h22)
	return aboutCentroids(Rotation(theta), srcCentroid, tgtCentroid), true
}

// aboutCentroids turns a linear map fitted on centred points into the full
// transform: move src to the origin, apply linear, move to tgt.
func aboutCentroids(linear AffineMatrix, src, tgt orb.Point) AffineMatrix {
	toOrigin := Translation(-src[0], -src[1])
	return MultiplyMatrices(Translation(tgt[0], tgt[1]), MultiplyMatrices(linear, toOrigin))
}

// affineTransform computes the full affine transform using least squares.
// Solves the system: [x' y'] = [x y 1] * [[a c] [b d] [tx ty]] through the
// normal equations and Cramer's rule, after centring for conditioning.
func affineTransform(source, target []orb.Point) (AffineMatrix, bool) {
	n := float64(len(source))
	srcCentroid := Centroid(source)
	tgtCentroid := Centroid(target)

	var sumXX, sumXY, sumYY float64
	var sumXXp, sumXYp, sumYXp, sumYYp float64
	for i := range source {
		x, y := source[i][0]-srcCentroid[0], source[i][1]-srcCentroid[1]
		xp, yp := target[i][0]-tgtCentroid[0], target[i][1]-tgtCentroid[1]

		sumXX += x * x
		sumXY += x * y
		sumYY += y * y
		sumXXp += x * xp
		sumXYp += x * yp
		sumYXp += y * xp
		sumYYp += y * yp
	}

	// Centred sums make the translation column decouple, leaving a 2x2
	// system per output coordinate.
	det := sumXX*sumYY - sumXY*sumXY
	scale := sumXX + sumYY
	if n < 3 || scale == 0 || math.Abs(det) < epsilon*scale*scale {
		return Identity(), false
	}

	a := (sumXXp*sumYY - sumYXp*sumXY) / det
	b := (sumYXp*sumXX - sumXXp*sumXY) / det
	c := (sumXYp*sumYY - sumYYp*sumXY) / det
	d := (sumYYp*sumXX - sumXYp*sumXY) / det

	return aboutCentroids(AffineMatrix{A: a, B: b, C: c, D: d}, srcCentroid, tgtCentroid), true
}
