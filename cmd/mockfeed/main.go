// Command mockfeed runs a local stand-in for the upstream price API.
// It serves GET /price?symbol=X with jittered random-walk prices and can
// simulate rate-limit rejections for exercising the stale-cache fallback.
//
// Usage:
//
//	go run ./cmd/mockfeed -port=:9090 -reject-every=0
package main

import (
	"flag"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pricewatch/pkg/utils"
)

var (
	port = flag.String("port", ":9090", "The feed port")
	// rejectEvery makes every Nth request answer 429, 0 disables
	rejectEvery = flag.Int("reject-every", 0, "Answer 429 to every Nth request (0 = never)")
	seed        = flag.Int64("seed", 1, "Random walk seed")
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	generator := utils.NewPriceGenerator(*seed)
	var requests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		n := requests.Add(1)
		if *rejectEvery > 0 && n%int64(*rejectEvery) == 0 {
			log.Info().Str("symbol", symbol).Msg("simulating rate-limit rejection")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		price := generator.Next(symbol)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"symbol": symbol,
			"price":  price.String(),
			"source": "mockfeed",
		})
	})

	log.Info().Str("port", *port).Msg("mock feed listening")
	if err := http.ListenAndServe(*port, mux); err != nil {
		log.Fatal().Err(err).Msg("mock feed stopped")
	}
}
