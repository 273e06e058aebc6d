package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/danielsussa/foxbit-rest-v3/internal/foxbit"
	"github.com/danielsussa/foxbit-rest-v3/internal/orderdb"
	"github.com/rs/zerolog/log"
)

type Runner struct {
	api foxbit.Iface
	db  orderdb.Iface

	sleep func(ctx context.Context, d time.Duration) error
}

func New(api foxbit.Iface, db orderdb.Iface) *Runner {
	return &Runner{
		api:   api,
		db:    db,
		sleep: sleepCtx,
	}
}

type Result struct {
	Member    foxbit.Member
	Placed    *foxbit.CreateOrderResponse
	Active    *foxbit.OrderList
	Cancelled *foxbit.CancelOrdersResponse
	Entry     orderdb.Entry

	Journal []string
}

func (r *Result) AddJournal(format string, args ...any) {
	r.Journal = append(r.Journal, fmt.Sprintf(format, args...))
}

// Run does, in order: me, place the plan's order, wait for Settle, list
// active orders, cancel the placed order by its id. The first error stops
// the run; an order already placed is left open.
func (r *Runner) Run(ctx context.Context, plan Plan) (Result, error) {
	res := Result{}

	orderReq, err := plan.OrderRequest()
	if err != nil {
		return res, err
	}
	settle, err := plan.SettleDuration()
	if err != nil {
		return res, err
	}

	res.Member, err = r.api.Me(ctx)
	if err != nil {
		return res, err
	}
	res.AddJournal("ME > OK")

	res.Entry = orderdb.NewEntry()
	res.Entry.MarketSymbol = orderReq.MarketSymbol
	res.Entry.Side = string(orderReq.Side)
	res.Entry.Type = string(orderReq.Type)
	res.Entry.Quantity = orderReq.Quantity.String()
	if orderReq.Price != nil {
		res.Entry.Price = orderReq.Price.String()
	}

	res.Placed, err = r.api.CreateOrder(ctx, orderReq)
	if err != nil {
		res.Entry.State = orderdb.StateFailed
		res.Entry.Error = err.Error()
		r.record(res.Entry)
		return res, err
	}
	res.Entry.OrderID = res.Placed.ID.String()
	res.Entry.Sn = res.Placed.Sn
	res.Entry.State = orderdb.StatePlaced
	r.record(res.Entry)
	res.AddJournal("[%s] ORDER > PLACE", res.Entry.OrderID)

	if settle > 0 {
		log.Info().Dur("settle", settle).Msg("waiting before listing active orders")
		if err := r.sleep(ctx, settle); err != nil {
			return res, err
		}
	}

	res.Active, err = r.api.ListOrders(ctx, foxbit.ListOrdersParams{
		MarketSymbol: orderReq.MarketSymbol,
		State:        foxbit.StateActive,
	})
	if err != nil {
		return res, err
	}
	if _, has := res.Active.Find(res.Placed.ID); has {
		res.AddJournal("[%s] ORDER > ACTIVE", res.Entry.OrderID)
	} else {
		log.Warn().Str("orderId", res.Entry.OrderID).Msg("placed order is not among active orders")
		res.AddJournal("[%s] ORDER > NOT ACTIVE", res.Entry.OrderID)
	}

	res.Cancelled, err = r.api.CancelOrder(ctx, res.Placed.ID)
	if err != nil {
		return res, err
	}
	now := time.Now().UTC()
	res.Entry.State = orderdb.StateCancelled
	res.Entry.CancelledAt = &now
	r.record(res.Entry)
	res.AddJournal("[%s] ORDER > CANCEL", res.Entry.OrderID)

	return res, nil
}

func (r *Runner) record(entry orderdb.Entry) {
	if r.db == nil {
		return
	}
	if err := r.db.Upsert(entry); err != nil {
		log.Warn().Err(err).Str("entry", entry.ID).Msg("could not write journal entry")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
