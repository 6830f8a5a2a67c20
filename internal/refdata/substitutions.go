package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"promaster/internal"
	"promaster/internal/config"
	"promaster/internal/importer"
)

// LoadSubstitutionsXLSX reads a two-column substitutes workbook: the first
// column is the ordered code, the second its replacement. The first row is
// a header.
func LoadSubstitutionsXLSX(path string) ([]internal.SubstitutionRule, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := importer.ReadRows(filepath.Base(path), blob)
	if err != nil {
		return nil, err
	}
	return rulesFromRows(rows), nil
}

// LoadSubstitutionsHTML scrapes a sheet published to the web. Row-number
// header cells are ignored.
func LoadSubstitutionsHTML(ctx context.Context, client *http.Client, url string) ([]internal.SubstitutionRule, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch substitutions sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch substitutions sheet: status=%d body=%s", resp.StatusCode, string(body))
	}
	return parseSheetHTML(resp.Body)
}

func parseSheetHTML(r io.Reader) ([]internal.SubstitutionRule, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("substitutions sheet has no table")
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rulesFromRows(rows), nil
}

// rulesFromRows skips the header row and any row missing either code.
func rulesFromRows(rows [][]string) []internal.SubstitutionRule {
	if len(rows) == 0 {
		return nil
	}
	out := make([]internal.SubstitutionRule, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		from, to := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if from == "" || to == "" {
			continue
		}
		out = append(out, internal.SubstitutionRule{From: from, To: to})
	}
	return out
}

// LoadSubstitutions picks the substitutes source: an explicit file, then
// the Sheets API, then a published sheet URL.
func LoadSubstitutions(ctx context.Context, cfg config.Config, path string) ([]internal.SubstitutionRule, error) {
	switch {
	case strings.TrimSpace(path) != "":
		return LoadSubstitutionsXLSX(path)
	case cfg.SubsSheetID != "":
		loader, err := NewSheetsLoader(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx)
	case cfg.SubsSheetURL != "":
		return LoadSubstitutionsHTML(ctx, &http.Client{Timeout: cfg.Cin7Timeout}, cfg.SubsSheetURL)
	default:
		return nil, errors.New("no substitutions source: pass --subs or set SUBS_SHEET_ID / SUBS_SHEET_URL")
	}
}
