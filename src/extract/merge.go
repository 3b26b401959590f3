package extract

import (
	"math"
	"sort"
	"strings"
)

// sameLine reports whether a and b sit on one visual line: their tops are
// within half the smaller fragment's height.
func sameLine(a, b Fragment) bool {
	tolerance := math.Min(a.Rect.Height, b.Rect.Height) / 2
	return math.Abs(a.Rect.Top-b.Rect.Top) <= tolerance
}

// rows groups fragments into visual lines. Fragments are taken top to
// bottom; one joins a row only if it is on the same line as every member,
// so two fragments whose tops differ by more than half the smaller height
// never share a row. Each row is sorted left to right.
func rows(frags []Fragment) [][]Fragment {
	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rect.Top != sorted[j].Rect.Top {
			return sorted[i].Rect.Top < sorted[j].Rect.Top
		}
		return sorted[i].Rect.Left < sorted[j].Rect.Left
	})

	var out [][]Fragment
	for _, f := range sorted {
		placed := false
		for i := len(out) - 1; i >= 0; i-- {
			if fits(out[i], f) {
				out[i] = append(out[i], f)
				placed = true
				break
			}
		}
		if !placed {
			out = append(out, []Fragment{f})
		}
	}
	for _, row := range out {
		sort.SliceStable(row, func(i, j int) bool { return row[i].Rect.Left < row[j].Rect.Left })
	}
	return out
}

func fits(row []Fragment, f Fragment) bool {
	for _, m := range row {
		if !sameLine(m, f) {
			return false
		}
	}
	return true
}

// Order returns frags in reading order: rows top to bottom, each row left to
// right.
func Order(frags []Fragment) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for _, row := range rows(frags) {
		out = append(out, row...)
	}
	return out
}

// Merge orders frags and joins them into text. A new output line starts at
// every row change, and inside a row whenever the fragment's top lies below
// the previous fragment's bottom minus threshold. Same-line fragments with a
// horizontal gap over one unit get exactly one space between them.
func Merge(frags []Fragment, threshold float64) string {
	var (
		lines []string
		cur   strings.Builder
		prev  *Fragment
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	for _, row := range rows(frags) {
		for i := range row {
			f := row[i]
			switch {
			case prev == nil:
			case i == 0 || f.Rect.Top-prev.Rect.Bottom > -threshold:
				flush()
			case f.Rect.Left-prev.Rect.Right > spaceGap:
				cur.WriteByte(' ')
			}
			cur.WriteString(f.Text)
			prev = &row[i]
		}
	}
	flush()
	return strings.Join(lines, "\n")
}
