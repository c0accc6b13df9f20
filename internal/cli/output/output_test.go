package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"", FormatTable, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" table ", FormatTable, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	tbl := NewTable("NAME", "STATE")
	tbl.AddRow("photos", "posted")
	tbl.AddRow("docs", "pending")
	require.NoError(t, p.Print(tbl))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "photos")
	assert.Contains(t, out, "pending")
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	// Non-renderer data in table mode still prints something parseable.
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	require.NoError(t, p.Print(map[string]int{"segments": 4}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 4, decoded["segments"])
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON, false)

	require.NoError(t, p.Print(struct {
		ShareID string `json:"share_id"`
	}{ShareID: "MRFE3BX25XTF5CH6FPP2PXDL"}))

	assert.Contains(t, buf.String(), `"share_id": "MRFE3BX25XTF5CH6FPP2PXDL"`)
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML, false)

	require.NoError(t, p.Print(map[string]string{"state": "posted"}))
	assert.Contains(t, buf.String(), "state: posted")
}

func TestPrintDetail(t *testing.T) {
	var buf bytes.Buffer
	err := PrintDetail(&buf, [][2]string{
		{"Share ID", "MRFE3BX25XTF5CH6FPP2PXDL"},
		{"Access", "public"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Share ID")
	assert.Contains(t, buf.String(), "public")
}

func TestColoredMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, true)
	p.Success("done")
	assert.Contains(t, buf.String(), "\033[32m")

	buf.Reset()
	p = NewPrinter(&buf, FormatTable, false)
	p.Error("failed")
	assert.Equal(t, "failed\n", buf.String())
}

func TestAgo(t *testing.T) {
	assert.Equal(t, "-", Ago(time.Time{}))
	assert.True(t, strings.HasSuffix(Ago(time.Now().Add(-5*time.Second)), "s ago"))
	assert.True(t, strings.HasSuffix(Ago(time.Now().Add(-5*time.Minute)), "m ago"))
	assert.True(t, strings.HasSuffix(Ago(time.Now().Add(-5*time.Hour)), "h ago"))
	assert.True(t, strings.HasSuffix(Ago(time.Now().Add(-72*time.Hour)), "d ago"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "750.0 KiB", FormatBytes(768000))
	assert.Equal(t, "2.0 MiB", FormatBytes(2*1024*1024))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(time.Time{}))
	assert.NotEqual(t, "-", FormatTime(time.Now()))
}
