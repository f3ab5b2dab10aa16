// Package sim gera cotações e atestados para ambiente local, no lugar do
// fornecedor de preços e do dealer MPC.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// Feed é um instrumento simulado; preço inicial em unidades de 10^Expo.
type Feed struct {
	ID    string
	Price int64
	Expo  int32
}

// DefaultFeeds é o catálogo usado pelas lutas de preço locais.
var DefaultFeeds = []Feed{
	{ID: "SOL/USD", Price: 15_000, Expo: -2},
	{ID: "BTC/USD", Price: 6_500_000, Expo: -2},
	{ID: "ETH/USD", Price: 320_000, Expo: -2},
	{ID: "BONK/USD", Price: 2_500, Expo: -8},
}

// Walker aplica um passeio aleatório de até MaxStepBPS por tick.
type Walker struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	feeds      []Feed
	version    int
	source     string
	MaxStepBPS int64
}

func NewWalker(source string, feeds []Feed, seed int64) *Walker {
	return &Walker{
		rnd:        rand.New(rand.NewSource(seed)),
		feeds:      append([]Feed(nil), feeds...),
		source:     source,
		MaxStepBPS: 50,
	}
}

// Next avança todos os feeds um passo e devolve as novas cotações.
func (w *Walker) Next(now time.Time) []events.PriceQuote {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.version++
	out := make([]events.PriceQuote, len(w.feeds))
	for i := range w.feeds {
		f := &w.feeds[i]
		step := w.rnd.Int63n(2*w.MaxStepBPS+1) - w.MaxStepBPS
		f.Price += f.Price * step / 10_000
		if f.Price < 1 {
			f.Price = 1
		}
		out[i] = events.PriceQuote{
			FeedID:      f.ID,
			Price:       f.Price,
			Expo:        f.Expo,
			PublishedAt: now.UTC(),
			Source:      w.source,
			Version:     w.version,
		}
	}
	return out
}
