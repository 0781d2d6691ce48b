package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"availability-service/pkg/response"
)

// ParseResourceQuery reads type (or resource_type), lat, lng, max_distance
// and city from a query string.
func ParseResourceQuery(values url.Values) (ResourceQuery, error) {
	q := ResourceQuery{
		ResourceType: values.Get("type"),
		City:         values.Get("city"),
	}
	if q.ResourceType == "" {
		q.ResourceType = values.Get("resource_type")
	}

	var err error
	if q.Latitude, err = optionalFloat(values, "lat"); err != nil {
		return q, err
	}
	if q.Longitude, err = optionalFloat(values, "lng"); err != nil {
		return q, err
	}
	if q.MaxDistanceKm, err = optionalFloat(values, "max_distance"); err != nil {
		return q, err
	}

	if q.Latitude != nil && math.Abs(*q.Latitude) > 90 {
		return q, fmt.Errorf("lat %v out of range: %w", *q.Latitude, response.ErrBadRequest)
	}
	if q.Longitude != nil && math.Abs(*q.Longitude) > 180 {
		return q, fmt.Errorf("lng %v out of range: %w", *q.Longitude, response.ErrBadRequest)
	}
	if q.MaxDistanceKm != nil && *q.MaxDistanceKm < 0 {
		return q, fmt.Errorf("negative max_distance: %w", response.ErrBadRequest)
	}

	return q, nil
}

func optionalFloat(values url.Values, key string) (*float64, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %v: %w", key, err, response.ErrBadRequest)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid %s: not a finite number: %w", key, response.ErrBadRequest)
	}
	return &v, nil
}
