// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package activity

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// paceFactor converts m/s to min/km.
const paceFactor = 16.6666666

// SpeedToPace renders a speed in m/s as a min/km pace "M:SS".
// Zero and negative speeds render as "0". Seconds are truncated, not rounded.
func SpeedToPace(speed float64) string {
	if speed <= 0 || math.IsNaN(speed) {
		return "0"
	}
	p := paceFactor / speed
	minutes := int64(p)
	seconds := int64(math.Mod(p*60, 60))
	return strconv.FormatInt(minutes, 10) + ":" + fmt.Sprintf("%02d", seconds)
}

// FormatDate returns the date part of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatClock returns the time-of-day part of t as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatMovingTime renders d as H:MM:SS.
func FormatMovingTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// FormatKilometers renders meters as kilometers with two decimals.
func FormatKilometers(meters float64) string {
	return strconv.FormatFloat(meters/1000, 'f', 2, 64)
}
