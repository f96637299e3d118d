package forecast

import "time"

// ExpandSeries turns a sparse run-length encoded series into one sample per
// covered hour, repeating each record's value across its duration. Records
// are taken in input order: no re-sorting, no deduplication. Records whose
// interval cannot be decoded are skipped.
func ExpandSeries(records []RawSeriesRecord) []ExpandedSample {
	var out []ExpandedSample
	for _, rec := range records {
		start, hours, err := DecodeValidTime(rec.ValidTime)
		if err != nil {
			continue
		}
		for h := 0; h < hours; h++ {
			out = append(out, ExpandedSample{
				Time:  start.Add(time.Duration(h) * time.Hour),
				Value: rec.Value,
			})
		}
	}
	return out
}

// SampleAt returns the series value at target using step-hold semantics:
// the first sample whose hour interval [t, t+1h) contains target wins; if
// none contains it, the last sample at or before target is used. Nil means
// the series is empty or starts after target.
//
// The first-containment-else-last-before tie-break is observable in output
// when upstream records overlap; keep it exactly.
func SampleAt(samples []ExpandedSample, target time.Time) *float64 {
	var last *float64
	found := false
	for _, s := range samples {
		if !s.Time.After(target) && target.Before(s.Time.Add(time.Hour)) {
			return s.Value
		}
		if !s.Time.After(target) {
			last = s.Value
			found = true
		}
	}
	if !found {
		return nil
	}
	return last
}
