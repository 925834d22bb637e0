package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/exchange"
)

// inspector probes the public exchange endpoints so operators can verify
// connectivity, clock offset and rate-limit behavior before running the
// trading server.
func main() {
	baseURL := flag.String("url", "https://fapi.hypercore.exchange", "exchange base URL")
	symbol := flag.String("symbol", "BTCUSDT", "instrument to probe")
	depth := flag.Int("depth", 5, "order book depth (5 or 15)")
	flag.Parse()

	client := exchange.NewClient(exchange.Options{
		BaseURL: *baseURL,
		Timeout: 10 * time.Second,
		Conn:    exchange.BucketConfig{Capacity: 300, RefillRate: 30},
		Account: exchange.BucketConfig{Capacity: 120, RefillRate: 10},
		Order:   exchange.BucketConfig{Capacity: 5, RefillRate: 5},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	serverMs, err := client.ServerTime(ctx)
	if err != nil {
		fail("server time", err)
	}
	rtt := time.Since(start)
	localMs := time.Now().UnixMilli()
	fmt.Printf("server time: %d (rtt %s, approx offset %dms)\n",
		serverMs, rtt.Round(time.Millisecond), serverMs-localMs)

	ticker, err := client.Ticker(ctx, *symbol)
	if err != nil {
		fail("ticker", err)
	}
	dump("ticker", ticker)

	book, err := client.Depth(ctx, *symbol, *depth)
	if err != nil {
		fail("depth", err)
	}
	fmt.Printf("depth: %d bids / %d asks\n", len(book.Bids), len(book.Asks))

	instruments, err := client.Instruments(ctx)
	if err != nil {
		fail("instruments", err)
	}
	fmt.Printf("instruments: %d listed\n", len(instruments))
}

func dump(label string, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("%s:\n%s\n", label, data)
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s probe failed: %v\n", stage, err)
	os.Exit(1)
}
