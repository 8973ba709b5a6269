package ussd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/store"
)

// FieldRange is the inclusive bound of a soil or climate reading.
type FieldRange struct {
	Min  float64
	Max  float64
	Unit string
}

// FieldRanges is the closed table of numeric fields a fields node may collect.
var FieldRanges = map[string]FieldRange{
	"nitrogen":    {0, 150, "mg/kg"},
	"phosphorus":  {0, 150, "mg/kg"},
	"potassium":   {0, 150, "mg/kg"},
	"temperature": {0, 50, "°C"},
	"humidity":    {0, 100, "%"},
	"ph":          {0, 14, "pH"},
	"rainfall":    {0, 5000, "mm"},
}

// Collection is the state of a field collection after consuming some input.
type Collection struct {
	Values []store.FieldValue
	// Notice is the message key explaining why the latest value was refused.
	Notice   string
	Consumed int
	Complete bool
}

// Next is the index of the field to prompt for.
func (c Collection) Next() int { return len(c.Values) }

// Collect feeds values to the ordered fields, one value per field. Refused
// values leave the index where it was. It stops once every field is filled.
func Collect(fields []string, values []string) Collection {
	var c Collection
	for _, raw := range values {
		if c.Complete {
			break
		}
		c.Consumed++
		name := fields[len(c.Values)]
		v, err := parseNumber(raw)
		if err != nil {
			c.Notice = catalog.KeyInvalidInput
			continue
		}
		if CheckField(name, v) != nil {
			c.Notice = "invalid_" + name
			continue
		}
		c.Notice = ""
		c.Values = append(c.Values, store.FieldValue{Name: name, Value: v})
		c.Complete = len(c.Values) == len(fields)
	}
	return c
}

// CheckField reports whether v lies inside the range of the named field.
func CheckField(name string, v float64) error {
	r, ok := FieldRanges[name]
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	if math.IsNaN(v) || v < r.Min || v > r.Max {
		return fmt.Errorf("%s must be between %g and %g %s", name, r.Min, r.Max, r.Unit)
	}
	return nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return v, nil
}
