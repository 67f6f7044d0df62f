package alignment

// InitialCentre is the first candidate's number, or 1 without candidates.
func InitialCentre(candidates []Slide) int {
	if len(candidates) == 0 {
		return 1
	}
	return candidates[0].Number
}

// AdvanceCentre moves the window after a batch: one below the highest valid
// slide id matched, or unchanged when nothing matched.
func AdvanceCentre(previous int, mappings []Mapping) int {
	highest := 0
	for _, m := range mappings {
		if m.Valid() && m.SlideID > highest {
			highest = m.SlideID
		}
	}
	if highest == 0 {
		return previous
	}
	return highest - 1
}
