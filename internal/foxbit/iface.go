package foxbit

import "context"

type Iface interface {
	Me(ctx context.Context) (Member, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	ListOrders(ctx context.Context, params ListOrdersParams) (*OrderList, error)
	CancelOrder(ctx context.Context, id OrderID) (*CancelOrdersResponse, error)
}

var _ Iface = (*Api)(nil)
