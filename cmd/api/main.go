package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/danielsussa/foxbit-rest-v3/internal/config"
	"github.com/danielsussa/foxbit-rest-v3/internal/gateway"
	"github.com/danielsussa/foxbit-rest-v3/internal/stream"
	"github.com/rs/zerolog/log"
)

func main() {
	issue := flag.String("issue-token", "", "print a gateway token for this subject and exit")
	ttl := flag.Duration("ttl", time.Hour, "lifetime of an issued token")
	bookMarket := flag.String("book-market", "", "serve GET /orderbook for this market")
	bookInterval := flag.String("book-interval", stream.DefaultBookInterval, "order book update interval in ms")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogger(cfg.LogLevel, nil)

	if *issue != "" {
		token, err := gateway.IssueToken(cfg.GatewaySharedKey, *issue, *ttl)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(token)
		return
	}

	exApi, err := cfg.NewApi()
	if err != nil {
		log.Fatal().Err(err).Msg("configure exchange client")
	}

	if cfg.GatewaySharedKey == "" {
		log.Warn().Msg("GATEWAY_SHARED_KEY is empty, gateway routes are unauthenticated")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []gateway.Option
	if *bookMarket != "" {
		keeper, err := startBook(ctx, cfg.StreamURL, *bookMarket, *bookInterval)
		if err != nil {
			log.Fatal().Err(err).Msg("order book")
		}
		opts = append(opts, gateway.WithOrderBook(keeper))
	}
	srv := gateway.New(exApi, cfg.GatewaySharedKey, opts...)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if err := srv.Start(cfg.GatewayAddr); err != nil {
		log.Fatal().Err(err).Msg("gateway")
	}
}

// startBook keeps a local book in the background until ctx is done.
func startBook(ctx context.Context, url, market, interval string) (*stream.BookKeeper, error) {
	c, err := stream.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	keeper := stream.NewBookKeeper(c, market, interval)
	if err := keeper.Subscribe(); err != nil {
		_ = c.Close()
		return nil, err
	}

	go func() {
		defer c.Close()
		err := c.Run(ctx, func(ev stream.Event) {
			if err := keeper.Handle(ev); err != nil {
				log.Error().Err(err).Msg("order book")
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("order book stream stopped")
		}
	}()
	return keeper, nil
}
