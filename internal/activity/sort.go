// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package activity

import (
	"cmp"
	"slices"
	"strings"
)

// NextAscending decides the direction for a click on column.
// A referer that already mentions the column means the user clicked the
// same header again, so the previous direction flips. Any other referer
// starts ascending.
func NextAscending(referer, column string, previous bool) bool {
	if referer != "" && strings.Contains(referer, column) {
		return !previous
	}
	return true
}

// Sort orders list in place by column, then by start date, both in the
// same direction. The sort is stable. It returns false and leaves list
// untouched when column is unknown.
func Sort(list []Activity, column string, ascending bool) bool {
	primary := comparator(column)
	if primary == nil {
		return false
	}

	slices.SortStableFunc(list, func(a, b Activity) int {
		c := primary(a, b)
		if c == 0 {
			c = a.StartDateLocal.Compare(b.StartDateLocal)
		}
		if !ascending {
			c = -c
		}
		return c
	})
	return true
}

func comparator(column string) func(a, b Activity) int {
	switch column {
	case ColStartDateLocal:
		return func(a, b Activity) int { return a.StartDateLocal.Compare(b.StartDateLocal) }
	case ColMovingTime:
		return func(a, b Activity) int { return cmp.Compare(a.MovingTime, b.MovingTime) }
	case ColName:
		return func(a, b Activity) int { return cmp.Compare(a.Name, b.Name) }
	case ColType:
		return func(a, b Activity) int { return cmp.Compare(a.Type, b.Type) }
	case ColID:
		return func(a, b Activity) int { return cmp.Compare(a.ID, b.ID) }
	case ColDistance:
		return func(a, b Activity) int { return cmp.Compare(a.Distance, b.Distance) }
	case ColAverageSpeed:
		return func(a, b Activity) int { return cmp.Compare(a.AverageSpeed, b.AverageSpeed) }
	case ColMaxSpeed:
		return func(a, b Activity) int { return cmp.Compare(a.MaxSpeed, b.MaxSpeed) }
	default:
		return nil
	}
}
