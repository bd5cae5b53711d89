package domain

// ValidateSeatSelection rejects selections that are empty, repeat a seat or name seats the
// show does not have. It never consults occupancy.
func ValidateSeatSelection(show *Show, seats []SeatID) error {
	if len(seats) == 0 {
		return &SeatSelectionError{Reason: ReasonNoSeats}
	}

	seen := make(map[SeatID]bool, len(seats))
	var duplicates []SeatID

	for _, seat := range seats {
		if seen[seat] {
			duplicates = append(duplicates, seat)
			continue
		}
		seen[seat] = true
	}

	if len(duplicates) > 0 {
		return &SeatSelectionError{Reason: ReasonDuplicateSeats, Seats: duplicates}
	}

	valid := make(map[SeatID]bool, len(show.Seats))
	for _, seat := range show.Seats {
		valid[seat] = true
	}

	var unknown []SeatID

	for _, seat := range seats {
		if !valid[seat] {
			unknown = append(unknown, seat)
		}
	}

	if len(unknown) > 0 {
		return &SeatSelectionError{Reason: ReasonUnknownSeats, Seats: unknown}
	}

	return nil
}
