package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

func TestHooksFeedCounters(t *testing.T) {
	s := New(prometheus.NewRegistry())
	h := s.Hooks()

	h.OnWagerPlaced(domain.GameDerby, 300)
	h.OnWagerPlaced(domain.GameDerby, 100)
	h.OnMarketResolved(domain.GameDerby, 4)
	h.OnClaimed(domain.GameDerby, 396)
	h.OnTicketResolved(domain.GameFlip, domain.TicketTimedOut)
	h.OnError("claim")
	s.EventFailed("wager_placed")

	assert.Equal(t, 2.0, testutil.ToFloat64(s.Wagers.WithLabelValues("derby")))
	assert.Equal(t, 400.0, testutil.ToFloat64(s.StakedLamports.WithLabelValues("derby")))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.FeeLamports.WithLabelValues("derby")))
	assert.Equal(t, 396.0, testutil.ToFloat64(s.PaidLamports.WithLabelValues("derby")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Tickets.WithLabelValues("flip", "TIMED_OUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Errors.WithLabelValues("claim")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Events.WithLabelValues("wager_placed", "error")))
}
