// Package render turns an executed notebook into readable terminal text.
// It is a pure function of the notebook: no Drive access, no state access,
// no mutation of the document.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"tocolab/internal/notebook"
)

// ImagePlaceholder replaces binary display payloads; raw image bytes are
// never written to the terminal.
const ImagePlaceholder = "[image output]"

// Strips ANSI escape sequences (colors, cursor movement) from tracebacks.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// Notebook writes code cell sources and their outputs to w. Markdown and
// raw cells are skipped. Cells the runtime never executed are labeled with
// an empty counter.
func Notebook(w io.Writer, nb *notebook.Notebook) {
	for _, cell := range nb.Cells {
		if cell.CellType != notebook.CellCode {
			continue
		}

		label := " "
		if cell.ExecutionCount != nil {
			label = fmt.Sprintf("%d", *cell.ExecutionCount)
		}

		fmt.Fprintf(w, "--- In [%s] ---\n", label)
		fmt.Fprintln(w, string(cell.Source))
		fmt.Fprintln(w)

		if len(cell.Outputs) == 0 {
			continue
		}

		fmt.Fprintf(w, "--- Out [%s] ---\n", label)
		for _, out := range cell.Outputs {
			renderOutput(w, out)
		}
		fmt.Fprintln(w)
	}
}

// renderOutput writes a single cell output. Unknown output kinds are
// skipped without error.
func renderOutput(w io.Writer, out notebook.Output) {
	switch out.OutputType {
	case notebook.OutputStream:
		fmt.Fprint(w, string(out.Text))

	case notebook.OutputExecuteResult, notebook.OutputDisplayData:
		renderData(w, out.Data)

	case notebook.OutputError:
		if len(out.Traceback) == 0 {
			fmt.Fprintf(w, "%s: %s\n", out.Ename, out.Evalue)
			return
		}
		for _, line := range out.Traceback {
			fmt.Fprintln(w, stripANSI(line))
		}
	}
}

// renderData writes the best representation of a data bundle: plain text
// verbatim, images as a placeholder, anything else by its first entry.
func renderData(w io.Writer, data map[string]json.RawMessage) {
	if len(data) == 0 {
		return
	}

	if raw, ok := data["text/plain"]; ok {
		fmt.Fprintln(w, decodeText(raw))
		return
	}
	if _, ok := data["image/png"]; ok {
		fmt.Fprintln(w, ImagePlaceholder)
		return
	}
	if _, ok := data["image/jpeg"]; ok {
		fmt.Fprintln(w, ImagePlaceholder)
		return
	}

	// Unknown mime type: show the first entry in sorted key order so the
	// output is deterministic; placeholder for any image form.
	mimes := make([]string, 0, len(data))
	for mime := range data {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)

	if strings.HasPrefix(mimes[0], "image/") {
		fmt.Fprintln(w, ImagePlaceholder)
		return
	}
	fmt.Fprintln(w, decodeText(data[mimes[0]]))
}

func decodeText(raw json.RawMessage) string {
	var text notebook.MultilineText
	if err := json.Unmarshal(raw, &text); err != nil {
		return string(raw)
	}
	return string(text)
}
