// Package feed turns the raw NEO feed payload into asteroid records.
package feed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"asteroidradar/internal/apperr"
	"asteroidradar/internal/models"
)

const decodeOp = "decode asteroid feed"

// Field paths inside one asteroid object.
const (
	fieldID                = "id"
	fieldName              = "name"
	fieldAbsoluteMagnitude = "absolute_magnitude_h"
	fieldDiameterMax       = "estimated_diameter.kilometers.estimated_diameter_max"
	fieldRelativeVelocity  = "close_approach_data.0.relative_velocity.kilometers_per_second"
	fieldMissDistance      = "close_approach_data.0.miss_distance.astronomical"
	fieldHazardous         = "is_potentially_hazardous_asteroid"
)

// Decode validates the raw feed text and returns its near_earth_objects object.
func Decode(raw string) (gjson.Result, error) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, &apperr.DecodeError{Op: decodeOp, Err: errors.New("payload is not valid JSON")}
	}

	neo := gjson.Get(raw, "near_earth_objects")
	if !neo.Exists() {
		return gjson.Result{}, &apperr.DecodeError{Op: decodeOp, Err: errors.New("near_earth_objects is missing")}
	}
	if !neo.IsObject() {
		return gjson.Result{}, &apperr.DecodeError{Op: decodeOp, Err: fmt.Errorf("near_earth_objects is %s, want object", neo.Type)}
	}
	return neo, nil
}

type Parser struct {
	logger zerolog.Logger
}

func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "feed_parser").Logger()}
}

// Parse flattens the per-date arrays of neo in window order. Dates the feed
// left out are skipped; a malformed object fails the whole parse.
func (p *Parser) Parse(neo gjson.Result, window []string) ([]models.Asteroid, error) {
	asteroids := make([]models.Asteroid, 0)

	for _, date := range window {
		day := neo.Get(date)
		if !day.IsArray() {
			p.logger.Debug().Str("date", date).Msg("date missing from feed, skipping")
			continue
		}

		for i, raw := range day.Array() {
			asteroid, err := parseAsteroid(raw, date, i)
			if err != nil {
				return nil, err
			}
			asteroids = append(asteroids, asteroid)
		}
	}

	return asteroids, nil
}

func parseAsteroid(raw gjson.Result, date string, index int) (models.Asteroid, error) {
	if !raw.IsObject() {
		return models.Asteroid{}, &apperr.MalformedRecordError{Date: date, Index: index, Field: "", Reason: "is not an object"}
	}

	r := recordReader{raw: raw, date: date, index: index}
	asteroid := models.Asteroid{
		ID:                     r.integer(fieldID),
		Codename:               r.text(fieldName),
		CloseApproachDate:      date,
		AbsoluteMagnitude:      r.number(fieldAbsoluteMagnitude),
		EstimatedDiameter:      r.number(fieldDiameterMax),
		RelativeVelocity:       r.number(fieldRelativeVelocity),
		DistanceFromEarth:      r.number(fieldMissDistance),
		IsPotentiallyHazardous: r.boolean(fieldHazardous),
	}
	if r.err != nil {
		return models.Asteroid{}, r.err
	}
	return asteroid, nil
}

// recordReader keeps the first field error so extraction reads straight.
type recordReader struct {
	raw   gjson.Result
	date  string
	index int
	err   error
}

func (r *recordReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &apperr.MalformedRecordError{Date: r.date, Index: r.index, Field: field, Reason: reason}
	}
}

func (r *recordReader) lookup(field string) (gjson.Result, bool) {
	v := r.raw.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		r.fail(field, "is missing")
		return v, false
	}
	return v, true
}

func (r *recordReader) text(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	if v.Type != gjson.String {
		r.fail(field, "is not a string")
		return ""
	}
	return v.Str
}

func (r *recordReader) integer(field string) int64 {
	v, ok := r.lookup(field)
	if !ok {
		return 0
	}

	var text string
	switch v.Type {
	case gjson.Number:
		text = v.Raw
	case gjson.String:
		text = strings.TrimSpace(v.Str)
	default:
		r.fail(field, "is not an integer")
		return 0
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}
	// 3.0 and 3e0 are still integers
	f, err := strconv.ParseFloat(text, 64)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		r.fail(field, "is not an integer")
		return 0
	}
	return int64(f)
}

func (r *recordReader) number(field string) float64 {
	v, ok := r.lookup(field)
	if !ok {
		return 0
	}

	var (
		f   float64
		err error
	)
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		f, err = strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
	default:
		r.fail(field, "is not a number")
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(field, "is not a number")
		return 0
	}
	return f
}

func (r *recordReader) boolean(field string) bool {
	v, ok := r.lookup(field)
	if !ok {
		return false
	}

	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	r.fail(field, "is not a boolean")
	return false
}
