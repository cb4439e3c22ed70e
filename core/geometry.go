package core

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// NodePairEuclideanDistance returns the straight-line distance between the
// default-layout positions of a and b.
func (d *Design) NodePairEuclideanDistance(a, b *Node) (float64, error) {
	if err := d.checkNodePair("NodePairEuclideanDistance", a, b); err != nil {
		return 0, err
	}
	pa, pb := a.Position(), b.Position()
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y), nil
}

// NodePairHaversineDistanceKm returns the great-circle distance between a
// and b, reading positions as X = longitude and Y = latitude in degrees.
func (d *Design) NodePairHaversineDistanceKm(a, b *Node) (float64, error) {
	if err := d.checkNodePair("NodePairHaversineDistanceKm", a, b); err != nil {
		return 0, err
	}
	pa, pb := a.Position(), b.Position()
	lat1, lat2 := radians(pa.Y), radians(pb.Y)
	dLat := lat2 - lat1
	dLon := radians(pb.X - pa.X)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h)), nil
}

func (d *Design) checkNodePair(op string, a, b *Node) error {
	if err := d.owns(op, a); err != nil {
		return err
	}
	return d.owns(op, b)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
