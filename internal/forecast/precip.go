package forecast

import "time"

// Minimum display amounts per kind. Small frozen accumulations are visually
// and practically insignificant, so the frozen floor sits an order of
// magnitude above the liquid one.
const (
	liquidThresholdIn = 0.01
	liquidThresholdMM = 0.25
	frozenThresholdIn = 0.10
	frozenThresholdMM = 2.5
)

func displayThreshold(kind PrecipKind, units UnitSystem) float64 {
	switch {
	case kind == PrecipFrozen && units == UnitsImperial:
		return frozenThresholdIn
	case kind == PrecipFrozen:
		return frozenThresholdMM
	case units == UnitsImperial:
		return liquidThresholdIn
	default:
		return liquidThresholdMM
	}
}

// ExtractPeriods converts a raw precipitation series into index-addressed
// periods clipped against the display window [windowStart, windowStart +
// windowHours). Records with no value, a non-positive value, an undecodable
// interval, or an interval entirely outside the window are dropped. Periods
// are emitted per record with no coalescing; adjacent or overlapping output
// is possible when the upstream series is inconsistent.
func ExtractPeriods(records []RawSeriesRecord, kind PrecipKind, windowStart time.Time, windowHours int, units UnitSystem) []PrecipitationPeriod {
	windowEnd := windowStart.Add(time.Duration(windowHours) * time.Hour)

	var out []PrecipitationPeriod
	for _, rec := range records {
		if rec.Value == nil || *rec.Value <= 0 {
			continue
		}
		start, hours, err := DecodeValidTime(rec.ValidTime)
		if err != nil {
			continue
		}
		end := start.Add(time.Duration(hours) * time.Hour)
		if !end.After(windowStart) || !start.Before(windowEnd) {
			continue
		}
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(windowEnd) {
			end = windowEnd
		}

		out = append(out, PrecipitationPeriod{
			StartIndex:       int(start.Sub(windowStart).Hours()),
			EndIndex:         int(end.Sub(windowStart).Hours()),
			AmountNative:     *rec.Value,
			AmountDisplay:    *ConvertDepth(rec.Value, units),
			DisplayThreshold: displayThreshold(kind, units),
			Units:            units,
			Kind:             kind,
		})
	}
	return out
}

// MergePeriods reconciles the liquid and frozen period sets into one
// display set, at most one period per startIndex:
//
//  1. A frozen period with positive amount at the same startIndex as a
//     liquid period wins the slot outright; it is the same physical event
//     and the frozen accumulation is what matters to the viewer.
//  2. A liquid period with no frozen competitor survives only if the
//     temperature at its startIndex is unknown or above freezing. Liquid
//     precipitation at or below freezing is almost certainly frozen and
//     under-captured by the liquid series, so it is suppressed.
//  3. Frozen periods not consumed in step 1 are emitted unconditionally
//     when their amount is positive.
func MergePeriods(liquid, frozen []PrecipitationPeriod, hourly []HourlySample, units UnitSystem) []PrecipitationPeriod {
	freezing := 0.0
	if units == UnitsImperial {
		freezing = 32.0
	}

	handled := make(map[int]bool)  // liquid startIndexes already decided
	consumed := make(map[int]bool) // frozen startIndexes emitted in step 1

	out := make([]PrecipitationPeriod, 0, len(liquid)+len(frozen))
	for _, lp := range liquid {
		if handled[lp.StartIndex] {
			continue
		}
		handled[lp.StartIndex] = true

		if fp, ok := frozenAt(frozen, lp.StartIndex); ok {
			out = append(out, fp)
			consumed[fp.StartIndex] = true
			continue
		}
		if lp.AmountNative <= 0 {
			continue
		}
		if t := tempAt(hourly, lp.StartIndex); t != nil && *t <= freezing {
			continue
		}
		out = append(out, lp)
	}

	for _, fp := range frozen {
		if fp.AmountNative <= 0 || consumed[fp.StartIndex] {
			continue
		}
		consumed[fp.StartIndex] = true
		out = append(out, fp)
	}
	return out
}

// frozenAt returns the first frozen period with positive amount at idx.
func frozenAt(frozen []PrecipitationPeriod, idx int) (PrecipitationPeriod, bool) {
	for _, fp := range frozen {
		if fp.StartIndex == idx && fp.AmountNative > 0 {
			return fp, true
		}
	}
	return PrecipitationPeriod{}, false
}

// tempAt returns the temperature sample at hour offset idx, nil when the
// offset is out of range or the sample is missing.
func tempAt(hourly []HourlySample, idx int) *float64 {
	if idx < 0 || idx >= len(hourly) {
		return nil
	}
	return hourly[idx].Temp
}
