// Package polyline encodes and decodes Google's encoded polyline format.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Geometries are orb.LineStrings, so points are stored in (lon, lat) order.
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrMalformed is returned when an encoded polyline ends in the middle of a value
// or contains bytes outside the polyline alphabet.
var ErrMalformed = errors.New("malformed polyline")

// precision is the number of decimal places used by Google (1e5).
const precision = 1e5

// Decode decodes a polyline-encoded string into a line string.
// An empty string decodes to a nil line string.
func Decode(encoded string) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	var (
		line     orb.LineString
		index    int
		lat, lon int
	)

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next
		lat += latDelta
		lon += lonDelta

		line = append(line, orb.Point{float64(lon) / precision, float64(lat) / precision})
	}

	return line, nil
}

// decodeValue decodes one signed delta starting at index and returns the
// index of the next value.
func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrMalformed
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes a line string into a polyline-encoded string.
func Encode(line orb.LineString) string {
	if len(line) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(line)*4)
	prevLat, prevLon := 0, 0

	for _, p := range line {
		lat := int(math.Round(p.Lat() * precision))
		lon := int(math.Round(p.Lon() * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the length of the line in meters along the great circle.
func Length(line orb.LineString) float64 {
	return geo.LengthHaversine(line)
}
