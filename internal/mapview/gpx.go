// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package mapview

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr"`
	Track   gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name    string     `xml:"name,omitempty"`
	Type    string     `xml:"type,omitempty"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele,omitempty"`
	Time string   `xml:"time,omitempty"`
}

// Track is the input for WriteGPX. Altitude and Time are optional; when
// present they must align with LatLng.
type Track struct {
	Name     string
	Type     string
	Start    time.Time
	LatLng   [][2]float64
	Altitude []float64
	Time     []int64 // seconds from Start
}

// WriteGPX writes the track as a GPX 1.1 document.
func WriteGPX(w io.Writer, t Track) error {
	if len(t.LatLng) == 0 {
		return ErrEmptyTrack
	}

	withEle := len(t.Altitude) == len(t.LatLng)
	withTime := len(t.Time) == len(t.LatLng) && !t.Start.IsZero()

	points := make([]gpxPoint, len(t.LatLng))
	for i, c := range t.LatLng {
		p := gpxPoint{Lat: c[0], Lon: c[1]}
		if withEle {
			ele := t.Altitude[i]
			p.Ele = &ele
		}
		if withTime {
			p.Time = t.Start.Add(time.Duration(t.Time[i]) * time.Second).UTC().Format(time.RFC3339)
		}
		points[i] = p
	}

	doc := gpxDoc{
		Version: "1.1",
		Creator: "Stridemap",
		XMLNS:   "http://www.topografix.com/GPX/1/1",
		Track: gpxTrack{
			Name:    t.Name,
			Type:    t.Type,
			Segment: gpxSegment{Points: points},
		},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	return enc.Flush()
}
