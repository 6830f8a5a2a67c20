package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"promaster/internal"
	"promaster/internal/util"
)

const etdLayout = "2006-01-02"

// OrderDecision holds what the operator decided for one order reference.
type OrderDecision struct {
	Comment      string   `yaml:"comment"`
	Urgent       bool     `yaml:"urgent"`
	ETD          string   `yaml:"etd"`
	Swap         []string `yaml:"swap"`
	SkipPurchase []string `yaml:"skip_purchase"`
}

// Decisions is the operator input for a batch. Codes are compared by
// normalized key; anything not listed defaults to keep.
type Decisions struct {
	EnteredByID int                      `yaml:"entered_by_id"`
	Overrides   map[string]string        `yaml:"overrides"`
	Orders      map[string]OrderDecision `yaml:"orders"`

	normalizer util.CodeNormalizer
}

// LoadDecisions reads a decisions YAML file. An empty path yields empty
// decisions.
func LoadDecisions(path string) (Decisions, error) {
	if strings.TrimSpace(path) == "" {
		return Decisions{}, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Decisions{}, err
	}
	var d Decisions
	if err := yaml.Unmarshal(blob, &d); err != nil {
		return Decisions{}, fmt.Errorf("parse decisions %s: %w", path, err)
	}
	for ref, od := range d.Orders {
		if od.ETD == "" {
			continue
		}
		if _, err := time.Parse(etdLayout, od.ETD); err != nil {
			return Decisions{}, fmt.Errorf("order %s: etd %q is not YYYY-MM-DD", ref, od.ETD)
		}
	}
	return d, nil
}

func (d Decisions) WithNormalizer(n util.CodeNormalizer) Decisions {
	d.normalizer = n
	return d
}

func (d Decisions) Order(orderRef string) OrderDecision {
	return d.Orders[orderRef]
}

func (d Decisions) SwapDecision(orderRef, code string) internal.Decision {
	if d.listed(d.Order(orderRef).Swap, code) {
		return internal.DecisionSwap
	}
	return internal.DecisionKeep
}

func (d Decisions) SkipsPurchase(orderRef, code string) bool {
	return d.listed(d.Order(orderRef).SkipPurchase, code)
}

// Comment is the internal comment for an order, with " Urgent" appended
// when the order is flagged.
func (d Decisions) Comment(orderRef string) string {
	od := d.Order(orderRef)
	comment := strings.TrimSpace(od.Comment)
	if od.Urgent {
		comment = strings.TrimSpace(comment + " Urgent")
	}
	return comment
}

// ETD is the operator's date for the order, or today plus leadDays.
func (d Decisions) ETD(orderRef string, today time.Time, leadDays int) time.Time {
	if raw := d.Order(orderRef).ETD; raw != "" {
		if t, err := time.Parse(etdLayout, raw); err == nil {
			return t
		}
	}
	y, m, day := today.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, leadDays)
}

func (d Decisions) listed(codes []string, code string) bool {
	key := d.normalizer.Key(code)
	if key == "" {
		return false
	}
	for _, c := range codes {
		if d.normalizer.Key(c) == key {
			return true
		}
	}
	return false
}
