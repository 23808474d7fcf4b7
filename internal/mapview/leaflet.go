// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package mapview

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

// Marker colors for the start and end of a track.
const (
	StartColor = "green"
	EndColor   = "black"
)

// Renderer writes a self-contained Leaflet page for a track. The page
// pulls Leaflet from a CDN and shows one tile layer, the track polyline
// and start and end markers.
type Renderer struct {
	TileURL     string
	Attribution string
	Zoom        int
}

type mapData struct {
	Title       string
	TileURL     string
	Attribution string
	Zoom        int
	Center      [2]float64
	Coords      [][2]float64
	Start       [2]float64
	End         [2]float64
	StartColor  string
	EndColor    string
}

// Render writes the map page for coords to w.
func (r Renderer) Render(w io.Writer, title string, coords [][2]float64) error {
	center, err := Center(coords)
	if err != nil {
		return err
	}

	data := mapData{
		Title:       title,
		TileURL:     r.TileURL,
		Attribution: r.Attribution,
		Zoom:        r.Zoom,
		Center:      center,
		Coords:      coords,
		Start:       coords[0],
		End:         coords[len(coords)-1],
		StartColor:  StartColor,
		EndColor:    EndColor,
	}
	if err := mapTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}
