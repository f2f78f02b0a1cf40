package record

// Merge combines Holocene and Pleistocene collections of the same entity.
// Holocene records come first in their original order, followed by Pleistocene
// records whose identifier is not already present. On conflict the Holocene
// record always wins. If either input is empty the other is returned unchanged.
func Merge(holocene, pleistocene *Collection) *Collection {
	if pleistocene.Len() == 0 {
		return holocene
	}
	if holocene.Len() == 0 {
		return pleistocene
	}

	seen := make(map[int64]struct{}, len(holocene.records))
	merged := make([]*Record, 0, len(holocene.records)+len(pleistocene.records))
	for _, r := range holocene.records {
		if id, ok := r.ID(); ok {
			seen[id] = struct{}{}
		}
		merged = append(merged, r)
	}
	for _, r := range pleistocene.records {
		id, ok := r.ID()
		if !ok {
			merged = append(merged, r)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, r)
	}

	return &Collection{
		entity:   holocene.entity,
		datasets: append(holocene.Datasets(), pleistocene.datasets...),
		columns:  unionColumns(holocene.columns, pleistocene.columns),
		records:  merged,
	}
}

// unionColumns returns a followed by the columns of b that a lacks.
func unionColumns(a, b []string) []string {
	out := append([]string(nil), a...)
	have := make(map[string]struct{}, len(a))
	for _, c := range a {
		have[normalizeKey(c)] = struct{}{}
	}
	for _, c := range b {
		if _, ok := have[normalizeKey(c)]; ok {
			continue
		}
		have[normalizeKey(c)] = struct{}{}
		out = append(out, c)
	}
	return out
}
