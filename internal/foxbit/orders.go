package foxbit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	PathMe           = "/rest/v3/me"
	PathOrders       = "/rest/v3/orders"
	PathCancelOrders = "/rest/v3/orders/cancel"
)

type (
	Side      string
	OrderType string
	State     string
	CancelBy  string
)

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeLimit   OrderType = "LIMIT"
	OrderTypeMarket  OrderType = "MARKET"
	OrderTypeInstant OrderType = "INSTANT"

	StateActive          State = "ACTIVE"
	StatePartiallyFilled State = "PARTIALLY_FILLED"
	StateFilled          State = "FILLED"
	StateCanceled        State = "CANCELED"

	CancelByID CancelBy = "ID"
)

// OrderID keeps the id exactly as the exchange encoded it (string or
// number) so it can be echoed back in a cancel request.
type OrderID struct {
	raw json.RawMessage
}

func NewOrderID(id string) OrderID {
	b, _ := json.Marshal(id)
	return OrderID{raw: b}
}

func (o OrderID) String() string {
	var s string
	if err := json.Unmarshal(o.raw, &s); err == nil {
		return s
	}
	return string(o.raw)
}

func (o OrderID) IsZero() bool {
	return len(o.raw) == 0 || string(o.raw) == "null"
}

func (o OrderID) MarshalJSON() ([]byte, error) {
	if len(o.raw) == 0 {
		return []byte("null"), nil
	}
	return o.raw, nil
}

func (o *OrderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' && b[0] != 'n' && (b[0] < '0' || b[0] > '9') {
		return errors.Errorf("order id must be a string or number, got %s", string(b))
	}
	o.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Member is the /me payload, kept loose since its shape is account dependent.
type Member map[string]any

type CreateOrderRequest struct {
	MarketSymbol  string           `json:"market_symbol"`
	Side          Side             `json:"side"`
	Type          OrderType        `json:"type"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Quantity      decimal.Decimal  `json:"quantity"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
}

func (r CreateOrderRequest) Validate() error {
	if r.MarketSymbol == "" {
		return errors.New("market_symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return errors.Errorf("invalid side %q", r.Side)
	}
	if r.Type == OrderTypeLimit && r.Price == nil {
		return errors.New("price is required for limit orders")
	}
	if !r.Quantity.IsPositive() {
		return errors.New("quantity must be positive")
	}
	return nil
}

type CreateOrderResponse struct {
	ID OrderID `json:"id"`
	Sn string  `json:"sn"`
}

type Order struct {
	ID               OrderID          `json:"id"`
	Sn               string           `json:"sn"`
	ClientOrderID    string           `json:"client_order_id,omitempty"`
	MarketSymbol     string           `json:"market_symbol"`
	Side             Side             `json:"side"`
	Type             OrderType        `json:"type"`
	State            State            `json:"state"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	Quantity         decimal.Decimal  `json:"quantity"`
	QuantityExecuted *decimal.Decimal `json:"quantity_executed,omitempty"`
	CreatedAt        string           `json:"created_at,omitempty"`
}

type OrderList struct {
	Data []Order `json:"data"`
}

// Find returns the order with the given id.
func (l OrderList) Find(id OrderID) (Order, bool) {
	for _, order := range l.Data {
		if order.ID.String() == id.String() {
			return order, true
		}
	}
	return Order{}, false
}

type ListOrdersParams struct {
	MarketSymbol string
	State        State
}

func (p ListOrdersParams) query() map[string]string {
	q := make(map[string]string)
	if p.MarketSymbol != "" {
		q["market_symbol"] = p.MarketSymbol
	}
	if p.State != "" {
		q["state"] = string(p.State)
	}
	return q
}

type CancelOrderRequest struct {
	Type CancelBy `json:"type"`
	ID   OrderID  `json:"id"`
}

type CancelledOrder struct {
	ID OrderID `json:"id"`
	Sn string  `json:"sn"`
}

type CancelOrdersResponse struct {
	Data []CancelledOrder `json:"data"`
}

// Me returns the authenticated member.
func (a *Api) Me(ctx context.Context) (Member, error) {
	var result Member
	if err := a.Do(ctx, http.MethodGet, PathMe, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Api) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result CreateOrderResponse
	if err := a.Do(ctx, http.MethodPost, PathOrders, nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *Api) ListOrders(ctx context.Context, params ListOrdersParams) (*OrderList, error) {
	var result OrderList
	if err := a.Do(ctx, http.MethodGet, PathOrders, params.query(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder cancels a single order by id.
func (a *Api) CancelOrder(ctx context.Context, id OrderID) (*CancelOrdersResponse, error) {
	if id.IsZero() {
		return nil, errors.New("order id is required")
	}

	var result CancelOrdersResponse
	err := a.Do(ctx, http.MethodPut, PathCancelOrders, nil, CancelOrderRequest{
		Type: CancelByID,
		ID:   id,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
