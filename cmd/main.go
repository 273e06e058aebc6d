package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/danielsussa/foxbit-rest-v3/internal/config"
	"github.com/danielsussa/foxbit-rest-v3/internal/flow"
	"github.com/danielsussa/foxbit-rest-v3/internal/orderdb"
	"github.com/danielsussa/foxbit-rest-v3/internal/utils"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(aurora.Bold(aurora.Red("Failed to process request.")), err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogger(cfg.LogLevel, nil)

	exApi, err := cfg.NewApi()
	if err != nil {
		return err
	}
	fmt.Println("API_KEY:", aurora.Cyan(cfg.APIKey))

	plan, err := flow.LoadPlan(cfg.PlanFile)
	if err != nil {
		return err
	}

	db, err := orderdb.New(cfg.DBFolder)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, runErr := flow.New(exApi, db).Run(ctx, plan)

	if res.Member != nil {
		fmt.Println(aurora.Bold("Me:"), utils.Pretty(res.Member))
	}
	if res.Placed != nil {
		fmt.Println(aurora.Bold("Order:"), utils.Pretty(res.Placed))
	}
	if res.Active != nil {
		fmt.Println(aurora.Bold("Active orders:"), utils.Pretty(res.Active))
	}
	if res.Cancelled != nil {
		fmt.Println(aurora.Bold("Cancel:"), utils.Pretty(res.Cancelled))
	}
	for _, line := range res.Journal {
		fmt.Println(aurora.Green(line))
	}

	if runErr != nil {
		if res.Entry.State == orderdb.StatePlaced {
			log.Warn().Str("orderId", res.Entry.OrderID).Msg("order was placed and is still open")
		}
		return runErr
	}
	return nil
}
