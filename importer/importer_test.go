package importer_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lukemcguire/backlinkwatch/importer"
	"github.com/lukemcguire/backlinkwatch/result"
)

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name    string
		row     importer.Row
		wantErr string
	}{
		{
			name: "valid row",
			row:  importer.Row{LiveLink: "https://a.example", TargetURL: "https://example.com", TargetAnchor: "Example"},
		},
		{
			name:    "blank live link",
			row:     importer.Row{LiveLink: "  ", TargetURL: "https://example.com", TargetAnchor: "Example"},
			wantErr: "live_link is required",
		},
		{
			name:    "missing target",
			row:     importer.Row{LiveLink: "https://a.example", TargetAnchor: "Example"},
			wantErr: "target_url is required",
		},
		{
			name:    "missing anchor",
			row:     importer.Row{LiveLink: "https://a.example", TargetURL: "https://example.com"},
			wantErr: "target_anchor is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, importer.ValidateRow(tt.row))
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "\ufefftarget_anchor, Live_Link ,target_url,notes\n" +
		"My Site,https://a.example/post,https://mysite.com,first\n" +
		"  ,https://a.example/empty-anchor,https://mysite.com,\n" +
		",,,\n" +
		"\"Products, Services\", https://a.example/list ,https://mysite.com/products\n"

	res, err := importer.ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	first := res.Records[0]
	assert.Equal(t, "https://a.example/post", first.LiveLink)
	assert.Equal(t, "https://mysite.com", first.TargetURL)
	assert.Equal(t, "My Site", first.TargetAnchor)
	assert.Equal(t, result.StatusPending, first.Status)

	second := res.Records[1]
	assert.Equal(t, "https://a.example/list", second.LiveLink)
	assert.Equal(t, "Products, Services", second.TargetAnchor)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, importer.ImportError{Row: 3, Error: "target_anchor is required"}, res.Errors[0])
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := importer.ReadCSV(strings.NewReader("live_link,target_url\nhttps://a.example,https://b.example\n"))
	require.ErrorIs(t, err, importer.ErrMissingColumn)
	assert.Contains(t, err.Error(), "target_anchor")
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := importer.ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, importer.ErrMissingColumn)
}

func TestReadCSVMalformed(t *testing.T) {
	_, err := importer.ReadCSV(strings.NewReader("live_link,target_url,target_anchor\n\"unterminated,x,y\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, importer.ErrMissingColumn)
}

func TestTemplateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, importer.WriteTemplate(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "live_link,target_url,target_anchor\n"))

	res, err := importer.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Empty(t, res.Errors)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rows := [][]any{
		{"live_link", "target_url", "target_anchor"},
		{"https://a.example/post", "https://mysite.com", "My Site"},
		{"https://a.example/missing", "", "Anchor"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := importer.ReadXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "My Site", res.Records[0].TargetAnchor)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "target_url is required", res.Errors[0].Error)
}

func TestXLSXTemplateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, importer.WriteXLSXTemplate(&buf))

	res, err := importer.ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Empty(t, res.Errors)
}
