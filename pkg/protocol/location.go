package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LocationMessage carries a coordinate with optional accuracy, point of
// interest name and address.
type LocationMessage struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters; <= 0 means absent
	POIName   string
	Address   string
}

func (m *LocationMessage) TypeCode() byte { return TypeLocation }

// MarshalBody renders the location text form:
// "lat,lng[,acc]\n[poiName]\n[address]". Newlines inside the address are
// escaped as "\n". The poi line is only present when an address follows.
func (m *LocationMessage) MarshalBody() ([]byte, error) {
	if math.Abs(m.Latitude) > 90 || math.Abs(m.Longitude) > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}

	var sb strings.Builder
	sb.WriteString(formatCoord(m.Latitude))
	sb.WriteByte(',')
	sb.WriteString(formatCoord(m.Longitude))
	if m.Accuracy > 0 {
		sb.WriteByte(',')
		sb.WriteString(formatCoord(m.Accuracy))
	}
	if m.Address != "" {
		escaped := strings.ReplaceAll(m.Address, "\n", "\\n")
		if m.POIName != "" {
			sb.WriteByte('\n')
			sb.WriteString(m.POIName)
		}
		sb.WriteByte('\n')
		sb.WriteString(escaped)
	}
	return []byte(sb.String()), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func decodeLocation(body []byte) (*LocationMessage, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: bad length %d for location message", ErrBadMessage, len(body))
	}
	lines := strings.Split(string(body), "\n")
	if len(lines) > 3 {
		return nil, fmt.Errorf("%w: too many lines in location message", ErrBadMessage)
	}

	coords := strings.Split(lines[0], ",")
	if len(coords) < 2 || len(coords) > 3 {
		return nil, fmt.Errorf("%w: missing coordinates in location message", ErrBadMessage)
	}

	m := &LocationMessage{}
	var err error
	if m.Latitude, err = strconv.ParseFloat(coords[0], 64); err != nil {
		return nil, fmt.Errorf("%w: bad latitude", ErrBadMessage)
	}
	if m.Longitude, err = strconv.ParseFloat(coords[1], 64); err != nil {
		return nil, fmt.Errorf("%w: bad longitude", ErrBadMessage)
	}
	if len(coords) == 3 {
		if m.Accuracy, err = strconv.ParseFloat(coords[2], 64); err != nil {
			return nil, fmt.Errorf("%w: bad accuracy", ErrBadMessage)
		}
	}
	if math.Abs(m.Latitude) > 90 || math.Abs(m.Longitude) > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadMessage)
	}

	// With two lines the second is the address; with three the second is
	// the poi name and the third the address.
	switch len(lines) {
	case 2:
		m.Address = strings.ReplaceAll(lines[1], "\\n", "\n")
	case 3:
		m.POIName = lines[1]
		m.Address = strings.ReplaceAll(lines[2], "\\n", "\n")
	}
	return m, nil
}
