package proximity

// Normalize rescales values linearly into [low, high]. When every value is
// equal the range collapses and each value maps to high.
func Normalize(values map[string]float64, low, high float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	first := true
	var maxV, minV float64
	for _, v := range values {
		if first {
			maxV, minV = v, v
			first = false
			continue
		}
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	if maxV == minV {
		for k := range values {
			out[k] = high
		}
		return out
	}
	m := (high - low) / (maxV - minV)
	for k, v := range values {
		out[k] = m*(v-minV) + low
	}
	return out
}

// NormalizeFrequencies rescales the frequency of each ranked term.
func NormalizeFrequencies(stats []RankedTermStat, low, high float64) map[string]float64 {
	values := make(map[string]float64, len(stats))
	for _, s := range stats {
		values[s.Term] = float64(s.Frequency)
	}
	return Normalize(values, low, high)
}

// NormalizeDistances rescales the representative distance of each ranked term.
func NormalizeDistances(stats []RankedTermStat, low, high float64) map[string]float64 {
	values := make(map[string]float64, len(stats))
	for _, s := range stats {
		values[s.Term] = s.Distance
	}
	return Normalize(values, low, high)
}
