package foxbit

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"
)

// NewMock returns an ApiMock backed by an in-memory order book. Ids are
// handed out as sequential strings.
func NewMock(member Member, ordersList []Order) *ApiMock {
	var mu sync.Mutex
	nextID := 1000

	return &ApiMock{
		MeFunc: func(ctx context.Context) (Member, error) {
			return member, nil
		},
		CreateOrderFunc: func(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
			if err := req.Validate(); err != nil {
				return nil, &HTTPError{StatusCode: 400, Body: map[string]any{"message": err.Error()}, Raw: []byte(err.Error())}
			}

			mu.Lock()
			defer mu.Unlock()
			nextID++

			id := NewOrderID(strconv.Itoa(nextID))
			sn := fmt.Sprintf("SN%d", nextID)
			state := StateActive
			if req.Type == OrderTypeMarket || req.Type == OrderTypeInstant {
				state = StateFilled
			}

			ordersList = append(ordersList, Order{
				ID:            id,
				Sn:            sn,
				ClientOrderID: req.ClientOrderID,
				MarketSymbol:  req.MarketSymbol,
				Side:          req.Side,
				Type:          req.Type,
				State:         state,
				Price:         req.Price,
				Quantity:      req.Quantity,
				CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			})
			return &CreateOrderResponse{ID: id, Sn: sn}, nil
		},
		ListOrdersFunc: func(ctx context.Context, params ListOrdersParams) (*OrderList, error) {
			mu.Lock()
			defer mu.Unlock()

			newList := make([]Order, 0)
			for _, order := range ordersList {
				if params.MarketSymbol != "" && order.MarketSymbol != params.MarketSymbol {
					continue
				}
				if params.State != "" && order.State != params.State {
					continue
				}
				newList = append(newList, order)
			}
			return &OrderList{Data: newList}, nil
		},
		CancelOrderFunc: func(ctx context.Context, id OrderID) (*CancelOrdersResponse, error) {
			mu.Lock()
			defer mu.Unlock()

			idx := slices.IndexFunc(ordersList, func(o Order) bool { return o.ID.String() == id.String() })
			if idx == -1 {
				return nil, &HTTPError{StatusCode: 404, Body: map[string]any{"message": "order not found"}, Raw: []byte("order not found")}
			}
			if ordersList[idx].State != StateActive && ordersList[idx].State != StatePartiallyFilled {
				return &CancelOrdersResponse{Data: []CancelledOrder{}}, nil
			}

			ordersList[idx].State = StateCanceled
			return &CancelOrdersResponse{Data: []CancelledOrder{{ID: ordersList[idx].ID, Sn: ordersList[idx].Sn}}}, nil
		},
	}
}
