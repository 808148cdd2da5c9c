package simulate

import (
	"fmt"
	"io"
	"sort"

	"portfolioexecutor/src/allocator"
)

// WriteAllocations prints percentage allocations and their capital, sorted
// by name.
func WriteAllocations(w io.Writer, title string, total float64, pct map[string]float64) {
	capital := allocator.ToCapital(total, pct)
	names := make([]string, 0, len(pct))
	for n := range pct {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%s:\n", title)
	for _, n := range names {
		fmt.Fprintf(w, "   %-20s: %5.1f%% -> %.2f\n", n, pct[n], capital[n])
	}
}
