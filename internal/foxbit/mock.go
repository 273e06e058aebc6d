package foxbit

import (
	"context"
	"sync"
)

type ApiMock struct {
	MeFunc          func(ctx context.Context) (Member, error)
	CreateOrderFunc func(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	ListOrdersFunc  func(ctx context.Context, params ListOrdersParams) (*OrderList, error)
	CancelOrderFunc func(ctx context.Context, id OrderID) (*CancelOrdersResponse, error)

	mu         sync.Mutex
	totalCalls int
}

var _ Iface = (*ApiMock)(nil)

func (a *ApiMock) Me(ctx context.Context) (Member, error) {
	a.count()
	return a.MeFunc(ctx)
}

func (a *ApiMock) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	a.count()
	return a.CreateOrderFunc(ctx, req)
}

func (a *ApiMock) ListOrders(ctx context.Context, params ListOrdersParams) (*OrderList, error) {
	a.count()
	return a.ListOrdersFunc(ctx, params)
}

func (a *ApiMock) CancelOrder(ctx context.Context, id OrderID) (*CancelOrdersResponse, error) {
	a.count()
	return a.CancelOrderFunc(ctx, id)
}

func (a *ApiMock) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalCalls
}

func (a *ApiMock) count() {
	a.mu.Lock()
	a.totalCalls++
	a.mu.Unlock()
}
