// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package strava

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// streamKeys are requested on every stream call; missing ones come back absent.
const streamKeys = "latlng,altitude,distance,time"

// Streams holds the per-sample series of one activity. Series that the
// device did not record are nil.
type Streams struct {
	LatLng   [][2]float64 // degrees
	Altitude []float64    // meters
	Distance []float64    // meters from start
	Time     []int64      // seconds from start
}

type streamSet struct {
	LatLng *struct {
		Data [][2]float64 `json:"data"`
	} `json:"latlng"`
	Altitude *struct {
		Data []float64 `json:"data"`
	} `json:"altitude"`
	Distance *struct {
		Data []float64 `json:"data"`
	} `json:"distance"`
	Time *struct {
		Data []int64 `json:"data"`
	} `json:"time"`
}

// GetStreams fetches the sample streams for activityID at the given
// resolution (low, medium, high).
func (c *Client) GetStreams(ctx context.Context, accessToken string, activityID int64, resolution string) (*Streams, error) {
	query := url.Values{}
	query.Set("keys", streamKeys)
	query.Set("key_by_type", "true")
	if resolution != "" {
		query.Set("resolution", resolution)
	}

	path := "/activities/" + strconv.FormatInt(activityID, 10) + "/streams"

	var set streamSet
	if err := c.getJSON(ctx, "get_streams", accessToken, path, query, &set); err != nil {
		return nil, fmt.Errorf("get streams for activity %d: %w", activityID, err)
	}

	s := &Streams{}
	if set.LatLng != nil {
		s.LatLng = set.LatLng.Data
	}
	if set.Altitude != nil {
		s.Altitude = set.Altitude.Data
	}
	if set.Distance != nil {
		s.Distance = set.Distance.Data
	}
	if set.Time != nil {
		s.Time = set.Time.Data
	}
	return s, nil
}
