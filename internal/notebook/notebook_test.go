package notebook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("install cell prepended for third-party imports", func(t *testing.T) {
		nb, err := New("import numpy\nimport os\nprint(1)", "test", "")
		require.NoError(t, err)

		require.Len(t, nb.Cells, 2)
		assert.Contains(t, string(nb.Cells[0].Source), "!pip install -q numpy")
		assert.Equal(t, "import numpy\nimport os\nprint(1)", string(nb.Cells[1].Source))
	})

	t.Run("no install cell for stdlib-only source", func(t *testing.T) {
		nb, err := New("import os\nprint(1)", "test", "")
		require.NoError(t, err)

		require.Len(t, nb.Cells, 1)
		assert.NotContains(t, string(nb.Cells[0].Source), "pip install")
	})

	t.Run("install directive lists packages space-joined and sorted", func(t *testing.T) {
		nb, err := New("import zmq\nimport numpy", "", "")
		require.NoError(t, err)

		lines := strings.Split(string(nb.Cells[0].Source), "\n")
		assert.Equal(t, "!pip install -q numpy zmq", lines[len(lines)-1])
	})

	t.Run("markers produce one cell each", func(t *testing.T) {
		nb, err := New("x = 1\n# %%\ny = 2\n# %%\nz = 3", "", "")
		require.NoError(t, err)

		require.Len(t, nb.Cells, 3)
		assert.Equal(t, "x = 1", string(nb.Cells[0].Source))
		assert.Equal(t, "y = 2", string(nb.Cells[1].Source))
		assert.Equal(t, "z = 3", string(nb.Cells[2].Source))
	})

	t.Run("kernelspec always set", func(t *testing.T) {
		nb, err := New("print(1)", "", "")
		require.NoError(t, err)

		require.NotNil(t, nb.Metadata.Kernelspec)
		assert.Equal(t, "python3", nb.Metadata.Kernelspec.Name)
	})

	t.Run("accelerator key absent for default runtime", func(t *testing.T) {
		nb, err := New("print(1)", "", "")
		require.NoError(t, err)
		assert.Nil(t, nb.Metadata.Colab)

		data, err := Serialize(nb)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "accelerator")
		assert.NotContains(t, string(data), `"colab"`)
	})

	t.Run("accelerator set when requested", func(t *testing.T) {
		nb, err := New("print(1)", "train", AcceleratorGPU)
		require.NoError(t, err)

		require.NotNil(t, nb.Metadata.Colab)
		assert.Equal(t, "GPU", nb.Metadata.Colab.Accelerator)
		assert.Equal(t, "train", nb.Metadata.Colab.Name)
	})

	t.Run("empty source still yields one cell", func(t *testing.T) {
		nb, err := New("", "", "")
		require.NoError(t, err)

		require.Len(t, nb.Cells, 1)
		assert.Equal(t, "", string(nb.Cells[0].Source))
	})
}

func TestLoad(t *testing.T) {
	t.Run("cells untouched, accelerator patched", func(t *testing.T) {
		nb, err := New("import numpy\n# %%\nx = 1", "orig", "")
		require.NoError(t, err)
		raw, err := Serialize(nb)
		require.NoError(t, err)

		loaded, err := Load(raw, AcceleratorTPU)
		require.NoError(t, err)

		assert.Equal(t, "TPU", loaded.Metadata.Colab.Accelerator)
		require.Len(t, loaded.Cells, len(nb.Cells))
		for i := range nb.Cells {
			assert.Equal(t, nb.Cells[i].Source, loaded.Cells[i].Source)
		}
	})

	t.Run("no accelerator override leaves metadata alone", func(t *testing.T) {
		nb, err := New("x = 1", "", "")
		require.NoError(t, err)
		raw, err := Serialize(nb)
		require.NoError(t, err)

		loaded, err := Load(raw, "")
		require.NoError(t, err)
		assert.Nil(t, loaded.Metadata.Colab)
	})

	t.Run("round trip preserves cells byte for byte", func(t *testing.T) {
		nb, err := New("import numpy\n# %%\ny = 'text'\n# %%\nz = 3", "rt", AcceleratorGPU)
		require.NoError(t, err)

		raw, err := Serialize(nb)
		require.NoError(t, err)
		loaded, err := Load(raw, "")
		require.NoError(t, err)

		if diff := cmp.Diff(nb.Cells, loaded.Cells); diff != "" {
			t.Errorf("cells changed across round trip (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown metadata keys survive a round trip", func(t *testing.T) {
		raw := []byte(`{
			"nbformat": 4, "nbformat_minor": 0,
			"metadata": {"language_info": {"name": "python"}},
			"cells": [{"cell_type": "code", "source": "x = 1", "metadata": {}}]
		}`)

		loaded, err := Load(raw, "")
		require.NoError(t, err)

		out, err := Serialize(loaded)
		require.NoError(t, err)
		assert.Contains(t, string(out), "language_info")
	})

	t.Run("rejects unsupported nbformat", func(t *testing.T) {
		raw := []byte(`{"nbformat": 3, "nbformat_minor": 0, "metadata": {}, "cells": []}`)
		_, err := Load(raw, "")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("rejects unknown cell type", func(t *testing.T) {
		raw := []byte(`{"nbformat": 4, "nbformat_minor": 0, "metadata": {},
			"cells": [{"cell_type": "mystery", "source": "", "metadata": {}}]}`)
		_, err := Load(raw, "")
		assert.ErrorIs(t, err, ErrInvalidNotebook)
	})

	t.Run("rejects non-JSON input", func(t *testing.T) {
		_, err := Load([]byte("print('not a notebook')"), "")
		assert.ErrorIs(t, err, ErrInvalidNotebook)
	})
}

func TestMultilineText(t *testing.T) {
	t.Run("array form joins without separators", func(t *testing.T) {
		var m MultilineText
		require.NoError(t, json.Unmarshal([]byte(`["a\n", "b\n", "c"]`), &m))
		assert.Equal(t, "a\nb\nc", string(m))
	})

	t.Run("string form passes through", func(t *testing.T) {
		var m MultilineText
		require.NoError(t, json.Unmarshal([]byte(`"x = 1"`), &m))
		assert.Equal(t, "x = 1", string(m))
	})

	t.Run("marshals as plain string", func(t *testing.T) {
		data, err := json.Marshal(MultilineText("a\nb"))
		require.NoError(t, err)
		assert.Equal(t, `"a\nb"`, string(data))
	})
}

func TestValidate(t *testing.T) {
	t.Run("outputs on markdown cells rejected", func(t *testing.T) {
		nb := &Notebook{
			NBFormat: 4,
			Cells: []Cell{{
				CellType: CellMarkdown,
				Outputs:  []Output{{OutputType: OutputStream}},
			}},
		}
		assert.ErrorIs(t, nb.Validate(), ErrInvalidNotebook)
	})

	t.Run("unknown output types pass validation", func(t *testing.T) {
		// The renderer skips unknown output kinds; validation must not
		// reject them.
		nb := &Notebook{
			NBFormat: 4,
			Cells: []Cell{{
				CellType: CellCode,
				Outputs:  []Output{{OutputType: "update_display_data"}},
			}},
		}
		assert.NoError(t, nb.Validate())
	})
}
