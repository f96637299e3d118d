package forecast

import "time"

// Window bounds for the hourly display, set by the rendering layer.
const (
	MinWindowHours = 1
	MaxWindowHours = 48
)

// ClampWindow bounds a requested display window to [MinWindowHours, MaxWindowHours].
func ClampWindow(hours int) int {
	if hours < MinWindowHours {
		return MinWindowHours
	}
	if hours > MaxWindowHours {
		return MaxWindowHours
	}
	return hours
}

// Normalize runs the full pipeline over one grid endpoint's raw properties:
// expansion, hourly forward-fill sampling, precipitation period extraction
// and merge, and unit conversion. The window starts at the top of the hour
// containing now. The result depends only on its arguments, so repeated
// runs over identical input are identical.
func Normalize(props GridProperties, now time.Time, hours int, units UnitSystem) Payload {
	hours = ClampWindow(hours)
	windowStart := now.UTC().Truncate(time.Hour)

	temps := ExpandSeries(props.Temperature)
	feels := ExpandSeries(props.ApparentTemperature)
	winds := ExpandSeries(props.WindSpeed)
	gusts := ExpandSeries(props.WindGust)
	pops := ExpandSeries(props.ProbabilityOfPrecipitation)

	hourly := make([]HourlySample, 0, hours)
	for h := 0; h < hours; h++ {
		target := windowStart.Add(time.Duration(h) * time.Hour)
		hourly = append(hourly, HourlySample{
			Timestamp: target.Unix(),
			Temp:      ConvertTemp(SampleAt(temps, target), units),
			FeelsLike: ConvertTemp(SampleAt(feels, target), units),
			WindSpeed: ConvertSpeed(SampleAt(winds, target), units),
			WindGust:  ConvertSpeed(SampleAt(gusts, target), units),
			Pop:       popFraction(SampleAt(pops, target)),
		})
	}

	liquid := ExtractPeriods(props.QuantitativePrecipitation, PrecipLiquid, windowStart, hours, units)
	frozen := ExtractPeriods(props.SnowfallAmount, PrecipFrozen, windowStart, hours, units)

	return Payload{
		Hourly:               hourly,
		PrecipitationPeriods: MergePeriods(liquid, frozen, hourly, units),
	}
}

// popFraction maps an upstream percentage to [0,1], defaulting to 0 when
// the quantity is absent at the target hour.
func popFraction(v *float64) float64 {
	if v == nil {
		return 0
	}
	f := *v / 100.0
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
