package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiptDataset() Dataset {
	return Dataset{
		Headers: []string{"Username", "Read at"},
		Rows: []map[string]string{
			{"Username": "alice", "Read at": "2026-10-18T09:00:00Z"},
			{"Username": "bob, jr", "Read at": "2026-10-18T09:05:00Z"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(receiptDataset())
	require.NoError(t, err)
	assert.Equal(t, "Username,Read at\nalice,2026-10-18T09:00:00Z\n\"bob, jr\",2026-10-18T09:05:00Z\n", string(out))
}

func TestCSVNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Username"},
		Rows:    []map[string]string{{"Username": "=HYPERLINK(\"x\")"}, {"Username": "-1"}},
	}
	out, err := (&CSVExporter{BOM: true}).Render(data)
	require.NoError(t, err)
	assert.Equal(t, "\ufeffUsername\n\"'=HYPERLINK(\"\"x\"\")\"\n'-1\n", string(out))
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(receiptDataset(), "Read receipts")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "receipts-Fire_drill_.csv", Filename("receipts-Fire drill!", FormatCSV))
}
