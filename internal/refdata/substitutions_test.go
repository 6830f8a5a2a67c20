package refdata

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"promaster/internal"
	"promaster/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubClient(status int, body string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"application/json"}},
		}, nil
	})}
}

func TestLoadSubstitutionsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{{"Product", "Substitute"}, {"AB-12", "AB-13"}, {"", "X"}, {"KIT-1", "KIT-1"}}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	path := filepath.Join(t.TempDir(), "Substitutes.xlsx")
	require.NoError(t, f.SaveAs(path))

	rules, err := LoadSubstitutionsXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []internal.SubstitutionRule{{From: "AB-12", To: "AB-13"}, {From: "KIT-1", To: "KIT-1"}}, rules)
}

func TestLoadSubstitutionsHTML(t *testing.T) {
	page := `<html><body><table class="waffle">
<tr><th></th><th>A</th><th>B</th></tr>
<tr><th>1</th><td>Product</td><td>Substitute</td></tr>
<tr><th>2</th><td> AB-12 </td><td>AB-13</td></tr>
<tr><th>3</th><td>LEVER</td><td></td></tr>
</table></body></html>`

	rules, err := LoadSubstitutionsHTML(context.Background(), stubClient(http.StatusOK, page), "https://docs.test/pubhtml")
	require.NoError(t, err)
	assert.Equal(t, []internal.SubstitutionRule{{From: "AB-12", To: "AB-13"}}, rules)

	_, err = LoadSubstitutionsHTML(context.Background(), stubClient(http.StatusNotFound, "gone"), "https://docs.test/pubhtml")
	assert.ErrorContains(t, err, "status=404")
}

func TestSheetsLoader(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
		body := `{"range":"Sheet1!A1:B3","majorDimension":"ROWS","values":[["Product","Substitute"],["AB-12","AB-13"],["ONLY"]]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"application/json"}},
		}, nil
	})}
	svc, err := sheets.NewService(context.Background(), option.WithHTTPClient(client), option.WithEndpoint("https://sheets.test/"))
	require.NoError(t, err)

	rules, err := newSheetsLoader(svc, "sheet-1", "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []internal.SubstitutionRule{{From: "AB-12", To: "AB-13"}}, rules)
}

func TestLoadSubstitutionsNeedsSource(t *testing.T) {
	_, err := LoadSubstitutions(context.Background(), config.Config{}, "")
	assert.ErrorContains(t, err, "no substitutions source")

	_, err = NewSheetsLoader(context.Background(), config.Config{SubsSheetID: "x"})
	assert.ErrorContains(t, err, "GOOGLE_CLIENT_ID")
}

func TestLoadSubstitutionsMissingFile(t *testing.T) {
	_, err := LoadSubstitutions(context.Background(), config.Config{}, filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
