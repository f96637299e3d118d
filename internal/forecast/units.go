package forecast

import "math"

// Upstream series arrive metric: degC, km/h, mm.
const (
	mphPerKmh = 0.621371
	inchPerMM = 1.0 / 25.4
)

// ConvertTemp converts an upstream Celsius value to display units.
// Imperial converts to Fahrenheit and rounds to the nearest whole degree;
// metric rounds the source value with no conversion. Nil passes through.
func ConvertTemp(v *float64, units UnitSystem) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if units == UnitsImperial {
		c = c*9.0/5.0 + 32.0
	}
	r := math.Round(c)
	return &r
}

// ConvertSpeed converts an upstream km/h value to display units,
// rounded to the nearest whole unit. Nil passes through.
func ConvertSpeed(v *float64, units UnitSystem) *float64 {
	if v == nil {
		return nil
	}
	s := *v
	if units == UnitsImperial {
		s *= mphPerKmh
	}
	r := math.Round(s)
	return &r
}

// ConvertDepth converts an upstream millimetre depth to display units.
// Imperial converts to inches rounded to two decimals; metric is unchanged.
// Nil passes through.
func ConvertDepth(v *float64, units UnitSystem) *float64 {
	if v == nil {
		return nil
	}
	d := *v
	if units == UnitsImperial {
		d = math.Round(d*inchPerMM*100) / 100
	}
	return &d
}
