package refdata

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"promaster/internal"
	"promaster/internal/config"
)

// SheetsLoader reads the substitutes range through the Sheets API.
type SheetsLoader struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewSheetsLoader(ctx context.Context, cfg config.Config) (*SheetsLoader, error) {
	if err := cfg.Require("SUBS_SHEET_ID", cfg.SubsSheetID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	svc, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return newSheetsLoader(svc, cfg.SubsSheetID, cfg.SubsSheetRange), nil
}

func newSheetsLoader(svc *sheets.Service, spreadsheetID, readRange string) *SheetsLoader {
	if strings.TrimSpace(readRange) == "" {
		readRange = "Sheet1!A:B"
	}
	return &SheetsLoader{service: svc, spreadsheetID: spreadsheetID, readRange: readRange}
}

func (l *SheetsLoader) Load(ctx context.Context) ([]internal.SubstitutionRule, error) {
	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read substitutions range %s: %w", l.readRange, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rulesFromRows(rows), nil
}
