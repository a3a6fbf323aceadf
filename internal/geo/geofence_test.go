package geo

import (
	"math"
	"testing"
)

func TestFenceInsideAndOutside(t *testing.T) {
	fence := Fence{Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 120}

	nearLat, nearLon := DestinationPoint(fence.Latitude, fence.Longitude, 90, 80)
	res := fence.Evaluate(nearLat, nearLon)
	if !res.WithinRadius {
		t.Fatalf("point 80m away flagged outside 120m fence (distance %v)", res.DistanceMeters)
	}
	if math.Abs(res.DistanceMeters-80) > 1 {
		t.Fatalf("distance = %v, want ~80", res.DistanceMeters)
	}

	farLat, farLon := DestinationPoint(fence.Latitude, fence.Longitude, 45, 300)
	res = fence.Evaluate(farLat, farLon)
	if res.WithinRadius {
		t.Fatalf("point 300m away inside 120m fence")
	}
	if math.Abs(res.DistanceMeters-300) > 2 {
		t.Fatalf("distance = %v, want ~300", res.DistanceMeters)
	}
}

func TestFenceBoundaryInclusive(t *testing.T) {
	// Build a fence whose radius is exactly the computed distance to the
	// point, so the boundary comparison is exercised with equal values.
	lat, lon := DestinationPoint(48.8566, 2.3522, 180, 150)
	exact := Distance(48.8566, 2.3522, lat, lon)

	fence := Fence{Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: exact}
	res := fence.Evaluate(lat, lon)
	if !res.WithinRadius {
		t.Fatalf("point exactly at radius must be within (distance %v, radius %v)", res.DistanceMeters, exact)
	}
}

func TestFenceCenterPoint(t *testing.T) {
	fence := Fence{Latitude: -33.8688, Longitude: 151.2093, RadiusMeters: 50}
	res := fence.Evaluate(fence.Latitude, fence.Longitude)
	if !res.WithinRadius || res.DistanceMeters != 0 {
		t.Fatalf("center point: within=%v distance=%v", res.WithinRadius, res.DistanceMeters)
	}
}
