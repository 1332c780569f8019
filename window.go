package tablenav

// limitIDs returns the identifiers to store for a listing.
//
// When ids fit within maxCount they are kept whole. Otherwise, if currentID
// is present, a window of exactly maxCount identifiers is taken: up to
// window identifiers before currentID, the rest after it. The window is
// shifted to stay inside the listing, so near either end it keeps more on
// the other side. Without a usable currentID the first maxCount are kept.
//
// With maxCount=4, window=1 and ids 1..7:
//
//	current 4 -> [3 4 5 6]
//	current 1 -> [1 2 3 4]
//	current 7 -> [4 5 6 7]
func limitIDs(ids []string, currentID string, maxCount, window int) []string {
	n := len(ids)
	if maxCount < 0 || n <= maxCount {
		return copyIDs(ids)
	}

	start := 0
	if current := indexOf(ids, currentID); current >= 0 {
		before := clamp(window, 0, maxCount-1)
		start = clamp(current-before, 0, n-maxCount)
	}

	return copyIDs(ids[start : start+maxCount])
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func indexOf(ids []string, id string) int {
	if id == "" {
		return -1
	}
	for i, pk := range ids {
		if pk == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
