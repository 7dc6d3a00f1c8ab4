package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"table", FormatTable},
		{"TABLE", FormatTable},
		{"json", FormatJSON},
		{" json ", FormatJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, map[string]any{"name": "reports", "count": 2})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"name": "reports"`)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count"`
	}{Name: "reports", Count: 2})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "name: reports")
	assert.Contains(t, buf.String(), "count: 2")
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("ID", "USERNAME")
	table.AddRow("tok_1", "alice")
	table.AddRow("tok_2", "bob")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "tok_1")
	assert.Contains(t, out, "bob")
}

func TestPrinterColour(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Success("done")
	assert.Equal(t, "\033[32mdone\033[0m\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, false).Success("done")
	assert.Equal(t, "done\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, true).Error("broken")
	assert.Equal(t, "\033[31mbroken\033[0m\n", buf.String())
}
