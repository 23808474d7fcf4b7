// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package activity holds the activity table model: the record type, its
// column names, two-key sorting and the display formatting used by the
// HTML templates.
package activity

import (
	"fmt"
	"strings"
	"time"
)

// Column names as they appear in ?sort= and in the table header.
const (
	ColStartDateLocal = "start_date_local"
	ColMovingTime     = "moving_time"
	ColName           = "activity_name"
	ColType           = "type"
	ColID             = "id"
	ColDistance       = "distance"
	ColAverageSpeed   = "average_speed"
	ColMaxSpeed       = "max_speed"
)

// Columns lists the sortable columns in table order.
var Columns = []string{
	ColStartDateLocal,
	ColMovingTime,
	ColName,
	ColType,
	ColID,
	ColDistance,
	ColAverageSpeed,
	ColMaxSpeed,
}

// IsColumn reports whether name is one of Columns.
func IsColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Activity is one row of the athlete's activity list.
type Activity struct {
	ID             int64         `json:"id"`
	Name           string        `json:"activity_name"`
	Type           string        `json:"type"`
	StartDateLocal time.Time     `json:"start_date_local"`
	MovingTime     time.Duration `json:"moving_time"`
	Distance       float64       `json:"distance"`      // meters
	AverageSpeed   float64       `json:"average_speed"` // m/s
	MaxSpeed       float64       `json:"max_speed"`     // m/s
}

// startDateLayout is the local start timestamp format. Strava appends a
// literal Z even though the value is wall-clock time, so it is stripped.
const startDateLayout = "2006-01-02T15:04:05"

// ParseStartDate parses a YYYY-MM-DDTHH:MM:SS local timestamp.
func ParseStartDate(s string) (time.Time, error) {
	t, err := time.Parse(startDateLayout, strings.TrimSuffix(s, "Z"))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start_date_local %q: %w", s, err)
	}
	return t, nil
}
