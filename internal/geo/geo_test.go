package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	p := Point{Lat: 21.0285, Lng: 105.8542}
	if d := Distance(p, p); d != 0 {
		t.Errorf("Distance(p, p) = %v, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 21.0285, Lng: 105.8542}
	b := Point{Lat: 10.7769, Lng: 106.7009}
	if d1, d2 := Distance(a, b), Distance(b, a); d1 != d2 {
		t.Errorf("Distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64 // km
		tol  float64
	}{
		{
			// Hoan Kiem Lake to Temple of Literature, about 2.5 km.
			name: "hanoi landmarks",
			a:    Point{Lat: 21.0285, Lng: 105.8542},
			b:    Point{Lat: 21.0077, Lng: 105.8431},
			want: 2.58,
			tol:  0.05,
		},
		{
			// Hanoi to Ho Chi Minh City, about 1140 km.
			name: "hanoi to hcmc",
			a:    Point{Lat: 21.0285, Lng: 105.8542},
			b:    Point{Lat: 10.7769, Lng: 106.7009},
			want: 1143.5,
			tol:  1,
		},
		{
			// Antipodal points: half the Earth circumference at R=6371.
			name: "antipodal",
			a:    Point{Lat: 0, Lng: 0},
			b:    Point{Lat: 0, Lng: 180},
			want: math.Pi * EarthRadiusKm,
			tol:  1e-9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Distance = %v, want %v ± %v", got, tt.want, tt.tol)
			}
		})
	}
}
