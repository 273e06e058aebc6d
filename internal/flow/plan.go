package flow

import (
	"os"
	"strings"
	"time"

	"github.com/danielsussa/foxbit-rest-v3/internal/foxbit"
	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Plan is the order placed (and then cancelled) by a run.
type Plan struct {
	Description  string `yaml:"description"`
	MarketSymbol string `yaml:"marketSymbol"`
	Side         string `yaml:"side"`
	Type         string `yaml:"type"`
	Price        string `yaml:"price"`
	Quantity     string `yaml:"quantity"`
	// Settle is how long to wait between placing and listing, e.g. "2s"
	Settle string `yaml:"settle"`
}

func DefaultPlan() Plan {
	return Plan{
		Description:  "limit buy far from the market, then cancel it",
		MarketSymbol: "btcbrl",
		Side:         string(foxbit.SideBuy),
		Type:         string(foxbit.OrderTypeLimit),
		Price:        "10.0",
		Quantity:     "0.0001",
		Settle:       "2s",
	}
}

// LoadPlan reads a YAML plan; fields left out keep their default. An empty
// path returns DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan()
	if path == "" {
		return plan, nil
	}

	dat, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.Wrap(err, "cannot read plan file")
	}

	if err := yaml.Unmarshal(dat, &plan); err != nil {
		return Plan{}, errors.Wrap(err, "error to convert plan file")
	}

	if _, err := plan.OrderRequest(); err != nil {
		return Plan{}, err
	}
	if _, err := plan.SettleDuration(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p Plan) OrderRequest() (foxbit.CreateOrderRequest, error) {
	req := foxbit.CreateOrderRequest{
		MarketSymbol: strings.ToLower(p.MarketSymbol),
		Side:         foxbit.Side(strings.ToUpper(p.Side)),
		Type:         foxbit.OrderType(strings.ToUpper(p.Type)),
	}

	quantity, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		return req, errors.Wrapf(err, "invalid quantity %q", p.Quantity)
	}
	req.Quantity = quantity

	if p.Price != "" {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return req, errors.Wrapf(err, "invalid price %q", p.Price)
		}
		req.Price = &price
	}

	return req, req.Validate()
}

func (p Plan) SettleDuration() (time.Duration, error) {
	if p.Settle == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Settle)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid settle %q", p.Settle)
	}
	if d < 0 {
		return 0, errors.New("settle must not be negative")
	}
	return d, nil
}
