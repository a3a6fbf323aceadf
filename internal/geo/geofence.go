package geo

// Fence is a circular boundary around a target point.
type Fence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// FenceResult reports a single point-against-fence evaluation.
type FenceResult struct {
	WithinRadius   bool
	DistanceMeters float64
}

// Evaluate reports whether the point lies inside the fence. The boundary
// is inclusive: a point exactly RadiusMeters away is within. No policy
// lives here; what an out-of-range result means is up to the caller.
func (f Fence) Evaluate(lat, lon float64) FenceResult {
	d := Distance(lat, lon, f.Latitude, f.Longitude)
	return FenceResult{
		WithinRadius:   d <= f.RadiusMeters,
		DistanceMeters: d,
	}
}
