package notebook

import (
	"regexp"
	"strings"
)

// Cell boundary markers: the percent format ("# %%") and the classic
// exported-notebook format ("# In["). Both are matched as whole-line
// prefixes anywhere in the text.
var cellMarkerRe = regexp.MustCompile(`(?m)^# %%|^# In\[`)

// SplitCells splits source text into an ordered list of cell sources.
//
// With no markers the entire text is one cell, even when empty. With
// markers, text before the first marker becomes a preamble cell if it is
// non-empty after trimming, and the text following each marker line becomes
// one cell; marker lines themselves are not part of any cell, and regions
// that are empty after trimming are dropped. The empty-input behavior is
// therefore asymmetric between the two modes, which callers rely on.
//
// If every region is empty the whole text is returned as a single cell so
// a marker-only input still produces a document.
func SplitCells(source string) []string {
	marks := cellMarkerRe.FindAllStringIndex(source, -1)
	if len(marks) == 0 {
		return []string{source}
	}

	var cells []string
	if marks[0][0] > 0 {
		if preamble := strings.TrimSpace(source[:marks[0][0]]); preamble != "" {
			cells = append(cells, preamble)
		}
	}

	for i, m := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		region := source[m[0]:end]
		// Drop the marker line itself (including any cell title on it).
		if nl := strings.IndexByte(region, '\n'); nl >= 0 {
			region = region[nl+1:]
		} else {
			region = ""
		}
		if cell := strings.TrimSpace(region); cell != "" {
			cells = append(cells, cell)
		}
	}

	if len(cells) == 0 {
		return []string{source}
	}
	return cells
}
