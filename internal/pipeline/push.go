package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/cin7"
)

// OrderPoster creates orders in Cin7.
type OrderPoster interface {
	PostSalesOrders(ctx context.Context, orders []cin7.SalesOrder) (cin7.PostResponse, error)
	PostPurchaseOrders(ctx context.Context, orders []cin7.PurchaseOrder) (cin7.PostResponse, error)
}

var transitions = map[internal.GroupState][]internal.GroupState{
	internal.StatePending: {internal.StateBuilt, internal.StateBuildFailed},
	internal.StateBuilt:   {internal.StateSent},
	internal.StateSent:    {internal.StateSucceeded, internal.StateFailed},
}

// BuiltGroup tracks one group through build and push.
type BuiltGroup struct {
	Group
	State    internal.GroupState
	Sales    *cin7.SalesOrder
	Purchase *cin7.PurchaseOrder
	Supplier *internal.SupplierMatch
	Total    decimal.Decimal
	Err      error

	PurchaseLines []internal.PurchaseLine

	status int
	body   string
}

func NewBuiltGroup(g Group) *BuiltGroup {
	return &BuiltGroup{Group: g, State: internal.StatePending}
}

func (b *BuiltGroup) advance(to internal.GroupState) error {
	for _, next := range transitions[b.State] {
		if next == to {
			b.State = to
			return nil
		}
	}
	return fmt.Errorf("group %s: illegal transition %s -> %s", b.Key, b.State, to)
}

// Payload is the body element that was or would be posted.
func (b *BuiltGroup) Payload() any {
	switch {
	case b.Sales != nil:
		return b.Sales
	case b.Purchase != nil:
		return b.Purchase
	default:
		return nil
	}
}

func (b *BuiltGroup) Result() internal.PushResult {
	r := internal.PushResult{
		GroupKey:     b.Key,
		Kind:         b.Kind,
		State:        b.State,
		Success:      b.State == internal.StateSucceeded,
		StatusCode:   b.status,
		ResponseBody: b.body,
	}
	if b.Err != nil {
		r.Error = b.Err.Error()
	}
	return r
}

// Build runs the assembler for the group's kind. Failures leave the group
// BUILD_FAILED with the error kept.
func (b *BuiltGroup) Build(ctx context.Context, a *Assembler) error {
	var err error
	switch b.Kind {
	case internal.KindSales:
		var order cin7.SalesOrder
		if order, err = a.BuildSales(ctx, b.Group); err == nil {
			b.Sales = &order
		}
	case internal.KindPurchase:
		var build PurchaseBuild
		build, err = a.BuildPurchase(ctx, b.Group)
		b.Supplier = &build.Supplier
		if err == nil {
			b.Purchase = &build.Order
			b.Total = build.Total
			b.PurchaseLines = build.Lines
		}
	default:
		err = &BuildError{GroupKey: b.Key, Err: fmt.Errorf("unknown order kind %q", b.Kind)}
	}
	if err != nil {
		b.Err = err
		return b.advance(internal.StateBuildFailed)
	}
	return b.advance(internal.StateBuilt)
}

type Pusher struct {
	poster OrderPoster
	logger *slog.Logger
	dryRun bool
}

func NewPusher(poster OrderPoster, dryRun bool, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pusher{poster: poster, dryRun: dryRun, logger: logger}
}

// PushAll sends every built group in order, one request per group. A
// failing group never stops the ones after it. In dry-run mode groups stay
// BUILT.
func (p *Pusher) PushAll(ctx context.Context, groups []*BuiltGroup) []internal.PushResult {
	results := make([]internal.PushResult, 0, len(groups))
	for _, g := range groups {
		if g.State == internal.StateBuilt && !p.dryRun {
			p.push(ctx, g)
		}
		p.logger.Info("group finished", "group", g.Key, "kind", g.Kind, "state", g.State, "status", g.status)
		results = append(results, g.Result())
	}
	return results
}

func (p *Pusher) push(ctx context.Context, g *BuiltGroup) {
	if err := g.advance(internal.StateSent); err != nil {
		g.Err = err
		return
	}

	var resp cin7.PostResponse
	var err error
	switch {
	case g.Sales != nil:
		resp, err = p.poster.PostSalesOrders(ctx, []cin7.SalesOrder{*g.Sales})
	case g.Purchase != nil:
		resp, err = p.poster.PostPurchaseOrders(ctx, []cin7.PurchaseOrder{*g.Purchase})
	default:
		err = fmt.Errorf("group %s has no payload", g.Key)
	}

	g.status = resp.Status
	g.body = string(resp.Body)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		g.Err = err
		_ = g.advance(internal.StateFailed)
		return
	}
	_ = g.advance(internal.StateSucceeded)
}

// checkResponse accepts only a 2xx whose body is a result array with every
// entry successful.
func checkResponse(resp cin7.PostResponse) error {
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("cin7 returned status %d", resp.Status)
	}
	if !resp.Parsed || len(resp.Results) == 0 {
		return errors.New("cin7 returned an unrecognised body")
	}
	for _, r := range resp.Results {
		if !r.Success {
			return fmt.Errorf("cin7 rejected order: %v", r.Errors)
		}
	}
	return nil
}
