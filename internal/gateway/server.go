package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielsussa/foxbit-rest-v3/internal/foxbit"
	"github.com/danielsussa/foxbit-rest-v3/internal/stream"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ctxSubject = "subject"

// BookSource serves the local order book; *stream.BookKeeper is one.
type BookSource interface {
	View(depth int) stream.BookView
}

// Server exposes the signed exchange endpoints on a local HTTP port. When
// sharedKey is set every route except /health needs a bearer token from
// IssueToken.
type Server struct {
	api       foxbit.Iface
	sharedKey string
	book      BookSource
	logger    zerolog.Logger
	e         *echo.Echo
}

type Option func(s *Server)

// WithOrderBook adds GET /orderbook backed by book.
func WithOrderBook(book BookSource) Option {
	return func(s *Server) {
		s.book = book
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(api foxbit.Iface, sharedKey string, opts ...Option) *Server {
	s := &Server{
		api:       api,
		sharedKey: sharedKey,
		logger:    log.Logger,
		e:         echo.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status)
			if subject, ok := c.Get(ctxSubject).(string); ok {
				ev = ev.Str("subject", subject)
			}
			ev.Msg("gateway")
			return nil
		},
	}))

	s.e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	// market data is public, like /health
	if s.book != nil {
		s.e.GET("/orderbook", s.getOrderBook)
	}

	var guard []echo.MiddlewareFunc
	if sharedKey != "" {
		guard = append(guard, s.requireToken)
	}
	s.e.GET("/me", s.getMe, guard...)
	s.e.POST("/orders", s.placeOrder, guard...)
	s.e.GET("/orders", s.getOrders, guard...)
	s.e.PUT("/orders/cancel", s.cancelOrder, guard...)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("gateway listening")
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) getMe(c echo.Context) error {
	member, err := s.api.Me(c.Request().Context())
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, member)
}

func (s *Server) placeOrder(c echo.Context) error {
	req := new(foxbit.CreateOrderRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := s.api.CreateOrder(c.Request().Context(), *req)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (s *Server) getOrders(c echo.Context) error {
	orders, err := s.api.ListOrders(c.Request().Context(), foxbit.ListOrdersParams{
		MarketSymbol: c.QueryParam("market_symbol"),
		State:        foxbit.State(c.QueryParam("state")),
	})
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (s *Server) cancelOrder(c echo.Context) error {
	req := new(foxbit.CancelOrderRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Type != foxbit.CancelByID || req.ID.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "only cancel by ID with a non empty id is supported")
	}

	res, err := s.api.CancelOrder(c.Request().Context(), req.ID)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) getOrderBook(c echo.Context) error {
	return c.JSON(http.StatusOK, s.book.View(stream.DefaultBookDepth))
}

// upstreamError relays exchange rejections as they came; anything else is
// a 502.
func upstreamError(c echo.Context, err error) error {
	var httpErr *foxbit.HTTPError
	if errors.As(err, &httpErr) {
		if json.Valid(httpErr.Raw) {
			return c.JSONBlob(httpErr.StatusCode, httpErr.Raw)
		}
		return c.JSON(httpErr.StatusCode, echo.Map{
			"error": string(httpErr.Raw),
		})
	}

	log.Error().Err(err).Msg("gateway upstream failure")
	return c.JSON(http.StatusBadGateway, echo.Map{
		"error": err.Error(),
	})
}
