package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"promaster/internal"
)

// DefaultSupplierThreshold is the minimum similarity a supplier candidate
// needs before a purchase order is addressed to it.
const DefaultSupplierThreshold = 0.50

type Config struct {
	Cin7APIBaseURL  string        `envconfig:"CIN7_API_BASE_URL" default:"https://api.cin7.com/api"`
	Cin7APIUsername string        `envconfig:"CIN7_API_USERNAME"`
	Cin7APIKey      string        `envconfig:"CIN7_API_KEY"`
	Cin7RateLimit   int           `envconfig:"CIN7_RATE_LIMIT_RPS" default:"3"`
	Cin7Timeout     time.Duration `envconfig:"CIN7_TIMEOUT" default:"30s"`
	Cin7PageRows    int           `envconfig:"CIN7_PAGE_ROWS" default:"250"`

	DBPath             string        `envconfig:"DB_PATH" default:"./data/cache.db"`
	OutputDir          string        `envconfig:"OUTPUT_DIR" default:"./out"`
	CatalogCacheMaxAge time.Duration `envconfig:"CATALOG_CACHE_MAX_AGE" default:"24h"`
	CatalogCSVPath     string        `envconfig:"CATALOG_CSV_PATH"`

	SupplierThreshold float64 `envconfig:"SUPPLIER_MATCH_THRESHOLD" default:"0.50"`
	CodeAllowBang     bool    `envconfig:"CODE_ALLOW_BANG" default:"false"`
	BOMMaxDepth       int     `envconfig:"BOM_MAX_DEPTH" default:"1"`
	POSplitByOrder    bool    `envconfig:"PO_SPLIT_BY_ORDER" default:"false"`

	BranchIDs           map[string]int    `envconfig:"BRANCH_IDS" default:"Avondale:3,Hamilton:230"`
	BranchDefaultMember map[string]int    `envconfig:"BRANCH_DEFAULT_MEMBERS" default:"Avondale:3,Hamilton:230"`
	PrimaryBranch       string            `envconfig:"PRIMARY_BRANCH" default:"Avondale"`
	RepBranches         map[string]string `envconfig:"REP_BRANCHES" default:"Charlotte Meyer:Hamilton"`

	ETDLeadDays  int     `envconfig:"ETD_LEAD_DAYS" default:"2"`
	CurrencyCode string  `envconfig:"CURRENCY_CODE" default:"NZD"`
	TaxStatus    string  `envconfig:"TAX_STATUS" default:"Incl"`
	TaxRate      float64 `envconfig:"TAX_RATE" default:"15"`
	PriceTier    string  `envconfig:"PRICE_TIER" default:"Trade (NZD - Excl)"`
	OrderStage   string  `envconfig:"ORDER_STAGE" default:"New"`
	EnteredByID  int     `envconfig:"ENTERED_BY_ID" default:"0"`

	SubsSheetURL       string `envconfig:"SUBS_SHEET_URL"`
	SubsSheetID        string `envconfig:"SUBS_SHEET_ID"`
	SubsSheetRange     string `envconfig:"SUBS_SHEET_RANGE" default:"Sheet1!A:B"`
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRefreshToken string `envconfig:"GOOGLE_REFRESH_TOKEN"`
	GoogleRedirectURI  string `envconfig:"GOOGLE_REDIRECT_URI" default:"https://developers.google.com/oauthplayground"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.SupplierThreshold <= 0 || cfg.SupplierThreshold > 1 {
		cfg.SupplierThreshold = DefaultSupplierThreshold
	}
	if cfg.BOMMaxDepth < 1 {
		cfg.BOMMaxDepth = 1
	}
	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Branches returns the branch table with the primary branch first and the
// rest in name order.
func (c Config) Branches() ([]internal.Branch, error) {
	if _, ok := c.BranchIDs[c.PrimaryBranch]; !ok {
		return nil, fmt.Errorf("primary branch %q has no entry in BRANCH_IDS", c.PrimaryBranch)
	}

	names := make([]string, 0, len(c.BranchIDs))
	for name := range c.BranchIDs {
		if name != c.PrimaryBranch {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{c.PrimaryBranch}, names...)

	out := make([]internal.Branch, 0, len(names))
	for _, name := range names {
		member, ok := c.BranchDefaultMember[name]
		if !ok || member <= 0 {
			return nil, fmt.Errorf("branch %q has no default member id", name)
		}
		out = append(out, internal.Branch{Name: name, ID: c.BranchIDs[name], DefaultMemberID: member})
	}

	for rep, branch := range c.RepBranches {
		if _, ok := c.BranchIDs[branch]; !ok {
			return nil, fmt.Errorf("sales rep %q mapped to unknown branch %q", rep, branch)
		}
	}
	return out, nil
}
