// Command limitbook replays an orders file through a single book and echoes
// every trade and the settled book state after each submission.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	match "github.com/axon-trading/limitbook"
	"github.com/axon-trading/limitbook/feed"
)

type config struct {
	OrdersFile string `env:"ORDERS_FILE" envDefault:"orders.json"`
	Symbol     string `env:"SYMBOL" envDefault:"ACME"`
	DepthLimit uint32 `env:"DEPTH_LIMIT" envDefault:"10"`
	RingSize   int64  `env:"RING_SIZE" envDefault:"1024"`
	Verbose    bool   `env:"VERBOSE" envDefault:"true"`
}

// tradeEcho consumes the trade stream off the ring buffer.
type tradeEcho struct {
	logger *zap.Logger
}

func (e *tradeEcho) OnEvent(t *match.Trade) {
	e.logger.Info("trade",
		zap.Uint64("trade_id", t.ID),
		zap.String("taker_order_id", t.TakerOrderID),
		zap.String("maker_order_id", t.MakerOrderID),
		zap.String("price", t.Price.String()),
		zap.Int64("quantity", t.Quantity),
		zap.String("notional", t.Notional.String()),
	)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	match.SetLogger(logger)

	records, err := feed.ReadFile(cfg.OrdersFile)
	if err != nil {
		return err
	}

	publisher := match.NewStreamTradePublisher(cfg.RingSize, &tradeEcho{logger: logger})
	book := match.NewBook(cfg.Symbol, match.WithTradePublisher(publisher))
	go func() {
		_ = book.Start()
	}()

	view := match.NewAggregatedDepth()
	ctx := context.Background()

	for _, record := range records {
		order, err := record.Order()
		if err != nil {
			// A malformed record never reaches the book; skip and report.
			logger.Warn("skipping record", zap.Error(err))
			continue
		}

		logger.Info("adding order",
			zap.String("order_id", order.ID),
			zap.String("side", order.Side.String()),
			zap.String("price", order.Price.String()),
			zap.Int64("quantity", order.Quantity),
		)

		result, err := book.Submit(ctx, order)
		if err != nil {
			if errors.Is(err, match.ErrBookPoisoned) {
				return fmt.Errorf("submit %s: %w", order.ID, err)
			}
			logger.Warn("order rejected", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}

		if err := view.Apply(result); err != nil {
			return fmt.Errorf("apply result %s: %w", result.OrderID, err)
		}

		if cfg.Verbose {
			if err := render(ctx, book, cfg.DepthLimit); err != nil {
				return err
			}
		}
	}

	if !cfg.Verbose {
		if err := render(ctx, book, cfg.DepthLimit); err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := book.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown book: %w", err)
	}
	return publisher.Shutdown(shutdownCtx)
}

// render prints the settled book, best prices first, like the snapshot echo
// of the original replay tool.
func render(ctx context.Context, book *match.Book, limit uint32) error {
	depth, err := book.Depth(ctx, limit)
	if err != nil {
		return fmt.Errorf("depth: %w", err)
	}

	fmt.Printf("%s bids:\n", book.Symbol())
	for _, level := range depth.Bids {
		fmt.Printf("  %d@%s (%d orders)\n", level.Quantity, level.Price, level.Orders)
	}
	fmt.Printf("%s asks:\n", book.Symbol())
	for _, level := range depth.Asks {
		fmt.Printf("  %d@%s (%d orders)\n", level.Quantity, level.Price, level.Orders)
	}
	return nil
}
