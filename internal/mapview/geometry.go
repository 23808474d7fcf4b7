// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package mapview turns an activity's sample streams into artifacts: the
// Leaflet map page, the elevation profile fed to the chart service and a
// GPX track.
package mapview

import (
	"errors"
	"math"
)

// ErrEmptyTrack is returned when an activity has no GPS samples.
var ErrEmptyTrack = errors.New("activity has no gps track")

const earthRadiusMeters = 6371000.0

// Center returns the arithmetic mean of the coordinates.
func Center(coords [][2]float64) ([2]float64, error) {
	if len(coords) == 0 {
		return [2]float64{}, ErrEmptyTrack
	}

	var lat, lng float64
	for _, c := range coords {
		lat += c[0]
		lng += c[1]
	}
	n := float64(len(coords))
	return [2]float64{lat / n, lng / n}, nil
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b [2]float64) float64 {
	lat1 := a[0] * math.Pi / 180
	lat2 := b[0] * math.Pi / 180
	deltaLat := (b[0] - a[0]) * math.Pi / 180
	deltaLng := (b[1] - a[1]) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// CumulativeDistance returns the distance from the first coordinate to each
// coordinate along the track, in meters.
func CumulativeDistance(coords [][2]float64) []float64 {
	out := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		out[i] = out[i-1] + Haversine(coords[i-1], coords[i])
	}
	return out
}

// Profile pairs distance with altitude for the elevation chart.
type Profile struct {
	Distance []float64 `json:"distance"` // meters
	Altitude []float64 `json:"altitude"` // meters
}

// ElevationProfile builds the profile from the streams. The recorded
// distance series is preferred; when it is missing or misaligned the
// distance is computed from the coordinates. ok is false when there is no
// altitude to plot.
func ElevationProfile(coords [][2]float64, distance, altitude []float64) (Profile, bool) {
	if len(altitude) == 0 {
		return Profile{}, false
	}

	if len(distance) != len(altitude) {
		if len(coords) != len(altitude) {
			return Profile{}, false
		}
		distance = CumulativeDistance(coords)
	}
	return Profile{Distance: distance, Altitude: altitude}, true
}
