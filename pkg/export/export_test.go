package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Historial de tareas",
		Columns: []Column{
			{Key: "tarea", Label: "Tarea", Width: 3},
			{Key: "estado", Label: "Estado"},
		},
		Rows: []map[string]string{
			{"tarea": "Cimentación", "estado": "completado"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	text := strings.TrimPrefix(string(out), "\ufeff")
	assert.Equal(t, "Tarea;Estado\nCimentación;completado\n", text)
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsShareThePage(t *testing.T) {
	widths := columnWidths(sampleDataset().Columns)
	assert.InDelta(t, pageWidth, widths[0]+widths[1], 0.001)
	assert.InDelta(t, widths[1]*3, widths[0], 0.001)
}
