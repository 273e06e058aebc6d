package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/danielsussa/foxbit-rest-v3/internal/config"
	"github.com/danielsussa/foxbit-rest-v3/internal/stream"
	"github.com/danielsussa/foxbit-rest-v3/internal/utils"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog/log"
)

func main() {
	market := flag.String("market", "btcbrl", "market symbol")
	channels := flag.String("channels", stream.ChannelTrades, "comma separated channels (trades, orderbook-1000, ticker, candles-60)")
	book := flag.String("book", "", "keep a local order book at this update interval in ms (100, 250, 500, 1000)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogger(cfg.LogLevel, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := stream.Dial(ctx, cfg.StreamURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer c.Close()

	var keeper *stream.BookKeeper
	if *book != "" {
		keeper = stream.NewBookKeeper(c, *market, *book)
		if err := keeper.Subscribe(); err != nil {
			log.Fatal().Err(err).Msg("subscribe book")
		}
	} else {
		for _, ch := range strings.Split(*channels, ",") {
			if err := c.Subscribe(strings.TrimSpace(ch), *market); err != nil {
				log.Fatal().Err(err).Msg("subscribe")
			}
		}
	}

	err = c.Run(ctx, func(ev stream.Event) {
		ch := ev.Channel()
		if ch == stream.ChannelPing {
			return
		}
		if keeper != nil {
			if err := keeper.Handle(ev); err != nil {
				log.Error().Err(err).Msg("order book")
				return
			}
			printTop(keeper)
			return
		}
		fmt.Printf("[%s] %s %s\n",
			time.Now().Format(time.TimeOnly),
			aurora.Bold(aurora.Yellow(ch)),
			utils.Pretty(ev.Data),
		)
	})

	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("stream")
	}
}

func printTop(keeper *stream.BookKeeper) {
	view := keeper.View(1)
	if len(view.Asks) == 0 || len(view.Bids) == 0 {
		return
	}
	fmt.Printf("[%s] %s #%d bid %s / ask %s\n",
		time.Now().Format(time.TimeOnly),
		aurora.Bold(aurora.Yellow(view.MarketSymbol)),
		view.SequenceID,
		aurora.Green(view.Bids[0].Price.String()),
		aurora.Red(view.Asks[0].Price.String()),
	)
}
