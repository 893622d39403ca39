package evaluation

// RecallAtK is the fraction of relevant IDs found in the first k retrieved.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}
	want := toSet(relevant)

	found := 0
	for _, id := range topK(retrieved, k) {
		if _, ok := want[id]; ok {
			found++
			delete(want, id)
		}
	}
	return float64(found) / float64(len(relevant))
}

// MRRAtK is the reciprocal rank of the first relevant ID within the first k
// retrieved, 0.0 when none appears.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}
	want := toSet(relevant)

	for i, id := range topK(retrieved, k) {
		if _, ok := want[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}

// Intersect returns the members of retrieved that appear in ids, in retrieved order
func Intersect(ids, retrieved []string) []string {
	set := toSet(ids)
	var out []string
	for _, id := range retrieved {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func topK(ids []string, k int) []string {
	if k > 0 && k < len(ids) {
		return ids[:k]
	}
	return ids
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
