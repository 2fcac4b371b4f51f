package task

// ComputeConflicts returns the tasks in snapshot whose window overlaps
// candidate. Completed and unscheduled tasks never conflict. The result keeps
// snapshot order.
func ComputeConflicts(candidate Interval, snapshot []Task) []Task {
	var out []Task
	for _, t := range snapshot {
		if t.Completed {
			continue
		}
		iv, ok := t.Interval()
		if !ok {
			continue
		}
		if candidate.Overlaps(iv) {
			out = append(out, t.clone())
		}
	}
	return out
}
