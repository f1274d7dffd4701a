package domain

// Filter returns the records whose magnitude is at least threshold, in input
// order. Records without a numeric magnitude never pass. The result is never nil.
func Filter(records []EncodedQuake, threshold float64) []EncodedQuake {
	visible := make([]EncodedQuake, 0, len(records))
	for _, r := range records {
		mag, ok := r.Mag()
		if !ok {
			continue
		}
		if mag >= threshold {
			visible = append(visible, r)
		}
	}
	return visible
}
