// Package notebook builds and parses Jupyter notebooks (nbformat v4) for
// Google Colab. It covers the full text-to-document path: cell segmentation,
// third-party dependency detection, and metadata assembly, plus loading of
// already-structured notebooks.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Notebook format produced and accepted by this package. Other major
// versions are rejected, never coerced.
const (
	FormatMajor = 4
	FormatMinor = 0
)

// Cell types.
const (
	CellCode     = "code"
	CellMarkdown = "markdown"
	CellRaw      = "raw"
)

// Accelerator values understood by Colab. The absence of the metadata key
// (not an empty value) selects the default CPU runtime.
const (
	AcceleratorGPU = "GPU"
	AcceleratorTPU = "TPU"
)

// ColabMIMEType marks uploaded files so Drive opens them in Colab.
const ColabMIMEType = "application/vnd.google.colab"

// NotebookMIMEType is the media type of the notebook JSON itself.
const NotebookMIMEType = "application/x-ipynb+json"

var (
	// ErrInvalidNotebook reports a structurally invalid document.
	ErrInvalidNotebook = errors.New("invalid notebook")

	// ErrUnsupportedFormat reports an nbformat version this build does not
	// understand.
	ErrUnsupportedFormat = errors.New("unsupported notebook format")
)

// MultilineText is a string that unmarshals from either a JSON string or a
// JSON array of line strings. nbformat allows both encodings; Colab emits
// the array form.
type MultilineText string

// UnmarshalJSON accepts both encodings.
func (m *MultilineText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultilineText(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("text is neither string nor string array: %w", err)
	}
	*m = MultilineText(strings.Join(lines, ""))
	return nil
}

// MarshalJSON always emits the plain string form.
func (m MultilineText) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// Output is one execution output attached to a code cell. Produced by the
// Colab runtime, consumed read-only by the renderer.
type Output struct {
	OutputType     string                     `json:"output_type"`
	Name           string                     `json:"name,omitempty"`
	Text           MultilineText              `json:"text,omitempty"`
	Data           map[string]json.RawMessage `json:"data,omitempty"`
	ExecutionCount *int                       `json:"execution_count,omitempty"`
	Ename          string                     `json:"ename,omitempty"`
	Evalue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// Output types emitted by the Jupyter protocol. Unknown types are preserved
// on parse and skipped by the renderer.
const (
	OutputStream        = "stream"
	OutputExecuteResult = "execute_result"
	OutputDisplayData   = "display_data"
	OutputError         = "error"
)

// Cell is one unit of a notebook. Order is significant and preserved
// end-to-end.
type Cell struct {
	CellType       string                     `json:"cell_type"`
	Source         MultilineText              `json:"source"`
	Metadata       map[string]json.RawMessage `json:"metadata"`
	ExecutionCount *int                       `json:"execution_count,omitempty"`
	Outputs        []Output                   `json:"outputs,omitempty"`
}

// Kernelspec identifies the execution kernel.
type Kernelspec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// ColabMetadata is the Colab-specific metadata block. Accelerator is only
// present for non-default runtimes.
type ColabMetadata struct {
	Name        string `json:"name,omitempty"`
	Accelerator string `json:"accelerator,omitempty"`
}

// Metadata is the notebook-level metadata. Unknown keys are carried in
// Extra so loading an existing notebook does not discard them.
type Metadata struct {
	Kernelspec *Kernelspec    `json:"kernelspec,omitempty"`
	Colab      *ColabMetadata `json:"colab,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// metadataKnownKeys lists the typed keys; everything else round-trips via
// Extra.
var metadataKnownKeys = map[string]bool{"kernelspec": true, "colab": true}

// UnmarshalJSON splits known keys from passthrough keys.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["kernelspec"]; ok {
		if err := json.Unmarshal(v, &m.Kernelspec); err != nil {
			return fmt.Errorf("bad kernelspec: %w", err)
		}
	}
	if v, ok := raw["colab"]; ok {
		if err := json.Unmarshal(v, &m.Colab); err != nil {
			return fmt.Errorf("bad colab metadata: %w", err)
		}
	}
	for k, v := range raw {
		if metadataKnownKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// MarshalJSON recombines typed and passthrough keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Kernelspec != nil {
		v, err := json.Marshal(m.Kernelspec)
		if err != nil {
			return nil, err
		}
		out["kernelspec"] = v
	}
	if m.Colab != nil {
		v, err := json.Marshal(m.Colab)
		if err != nil {
			return nil, err
		}
		out["colab"] = v
	}
	return json.Marshal(out)
}

// Notebook is the schema-validated document exchanged with Drive.
type Notebook struct {
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
	Metadata      Metadata `json:"metadata"`
	Cells         []Cell   `json:"cells"`
}

// New builds a notebook from raw source text. Segmentation and dependency
// detection both run here; if any third-party imports are found, an install
// cell is prepended at position 0. The result is validated before return.
func New(source, name, accelerator string) (*Notebook, error) {
	nb := &Notebook{
		NBFormat:      FormatMajor,
		NBFormatMinor: FormatMinor,
		Metadata: Metadata{
			Kernelspec: &Kernelspec{Name: "python3", DisplayName: "Python 3"},
		},
	}

	if name != "" || accelerator != "" {
		nb.Metadata.Colab = &ColabMetadata{Name: name, Accelerator: accelerator}
	}

	if pkgs := DetectThirdPartyImports(source); len(pkgs) > 0 {
		setup := "# Auto-detected dependencies\n!pip install -q " + strings.Join(pkgs, " ")
		nb.Cells = append(nb.Cells, newCodeCell(setup))
	}

	for _, cellSource := range SplitCells(source) {
		nb.Cells = append(nb.Cells, newCodeCell(cellSource))
	}

	if err := nb.Validate(); err != nil {
		return nil, err
	}
	return nb, nil
}

// Load parses existing notebook bytes. Cells are never re-segmented and
// dependencies are never re-inferred; only the accelerator metadata is
// patched, and only when an override is requested.
func Load(raw []byte, accelerator string) (*Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(raw, &nb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotebook, err)
	}
	if accelerator != "" {
		if nb.Metadata.Colab == nil {
			nb.Metadata.Colab = &ColabMetadata{}
		}
		nb.Metadata.Colab.Accelerator = accelerator
	}
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	return &nb, nil
}

// Serialize produces the canonical byte form uploaded to Drive.
func Serialize(nb *Notebook) ([]byte, error) {
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Validate checks the notebook against the pinned format version and cell
// schema. Validation failure is fatal to the calling operation; no partial
// document is ever uploaded.
func (nb *Notebook) Validate() error {
	if nb.NBFormat != FormatMajor {
		return fmt.Errorf("%w: nbformat %d (want %d)", ErrUnsupportedFormat, nb.NBFormat, FormatMajor)
	}
	for i, cell := range nb.Cells {
		switch cell.CellType {
		case CellCode, CellMarkdown, CellRaw:
		case "":
			return fmt.Errorf("%w: cell %d has no cell_type", ErrInvalidNotebook, i)
		default:
			return fmt.Errorf("%w: cell %d has unknown cell_type %q", ErrInvalidNotebook, i, cell.CellType)
		}
		if cell.CellType != CellCode && (len(cell.Outputs) > 0 || cell.ExecutionCount != nil) {
			return fmt.Errorf("%w: cell %d: only code cells carry outputs", ErrInvalidNotebook, i)
		}
		for j, out := range cell.Outputs {
			if out.OutputType == "" {
				return fmt.Errorf("%w: cell %d output %d has no output_type", ErrInvalidNotebook, i, j)
			}
		}
	}
	return nil
}

func newCodeCell(source string) Cell {
	return Cell{
		CellType: CellCode,
		Source:   MultilineText(source),
		Metadata: map[string]json.RawMessage{},
	}
}
