// Package tagset holds the set operations applied to image tags.
package tagset

// Intersect returns the tags present in every one of sets. Membership is
// what counts: duplicates are collapsed and the order of sets does not
// change which tags are returned. Tags come back in the order they first
// appear in sets[0].
//
// With no sets, or when any set is empty, the result is an empty slice.
func Intersect(sets [][]string) []string {
	if len(sets) == 0 {
		return []string{}
	}
	for _, set := range sets {
		if len(set) == 0 {
			return []string{}
		}
	}

	// counts[tag] is the number of sets seen so far that contain tag.
	counts := make(map[string]int, len(sets[0]))
	for _, tag := range sets[0] {
		counts[tag] = 1
	}
	for i, set := range sets[1:] {
		seen := i + 1
		for _, tag := range set {
			if counts[tag] == seen {
				counts[tag] = seen + 1
			}
		}
	}

	result := []string{}
	for _, tag := range sets[0] {
		if counts[tag] == len(sets) {
			result = append(result, tag)
			// Mark as emitted so duplicates in sets[0] appear once.
			counts[tag] = -1
		}
	}
	return result
}
