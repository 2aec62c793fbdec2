package monitor

// Rollup reduces a set of stream statuses to the group's worst status
// per the given severity order (most severe first). Statuses outside
// the order (DISABLED, NOT_TRACKED) never win; a group with none of the
// ordered statuses present rolls up to NOT_TRACKED. Idempotent and
// order-independent over its input.
func Rollup(statuses []Status, order []Status) Status {
	if len(order) == 0 {
		order = DefaultRollupOrder
	}
	present := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		present[s] = true
	}
	for _, s := range order {
		if present[s] {
			return s
		}
	}
	return StatusNotTracked
}
