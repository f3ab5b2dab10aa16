// Package metrics liga os callbacks do engine a contadores Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
)

// Settlement agrupa os coletores do settlement-service.
type Settlement struct {
	Wagers         *prometheus.CounterVec
	StakedLamports *prometheus.CounterVec
	Resolved       *prometheus.CounterVec
	FeeLamports    *prometheus.CounterVec
	Claimed        *prometheus.CounterVec
	PaidLamports   *prometheus.CounterVec
	Refunded       *prometheus.CounterVec
	Tickets        *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	Events         *prometheus.CounterVec
}

// New cria e registra os coletores.
func New(reg prometheus.Registerer) *Settlement {
	s := &Settlement{
		Wagers:         counter("settlement_wagers_placed_total", "apostas aceitas", "game"),
		StakedLamports: counter("settlement_staked_lamports_total", "lamports apostados", "game"),
		Resolved:       counter("settlement_markets_resolved_total", "mercados resolvidos", "game"),
		FeeLamports:    counter("settlement_fee_lamports_total", "taxas creditadas na resolução", "game"),
		Claimed:        counter("settlement_claims_total", "claims pagos", "game"),
		PaidLamports:   counter("settlement_paid_lamports_total", "lamports pagos em claims", "game"),
		Refunded:       counter("settlement_refunds_total", "refunds de mercados cancelados", "game"),
		Tickets:        counter("settlement_tickets_resolved_total", "tickets commit-reveal resolvidos", "game", "status"),
		Errors:         counter("settlement_errors_total", "operações rejeitadas por operação", "op"),
		Events:         counter("settlement_events_total", "eventos publicados por resultado", "topic", "result"),
	}
	reg.MustRegister(s.Wagers, s.StakedLamports, s.Resolved, s.FeeLamports, s.Claimed,
		s.PaidLamports, s.Refunded, s.Tickets, s.Errors, s.Events)
	return s
}

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// Hooks devolve os callbacks para engine.Deps.
func (s *Settlement) Hooks() engine.Hooks {
	return engine.Hooks{
		OnWagerPlaced: func(g domain.Game, amount uint64) {
			s.Wagers.WithLabelValues(string(g)).Inc()
			s.StakedLamports.WithLabelValues(string(g)).Add(float64(amount))
		},
		OnMarketResolved: func(g domain.Game, fee uint64) {
			s.Resolved.WithLabelValues(string(g)).Inc()
			s.FeeLamports.WithLabelValues(string(g)).Add(float64(fee))
		},
		OnClaimed: func(g domain.Game, payout uint64) {
			s.Claimed.WithLabelValues(string(g)).Inc()
			s.PaidLamports.WithLabelValues(string(g)).Add(float64(payout))
		},
		OnRefunded: func(g domain.Game, _ uint64) {
			s.Refunded.WithLabelValues(string(g)).Inc()
		},
		OnTicketResolved: func(g domain.Game, st domain.TicketStatus) {
			s.Tickets.WithLabelValues(string(g), string(st)).Inc()
		},
		OnError: func(op string) { s.Errors.WithLabelValues(op).Inc() },
	}
}

// EventPublished e EventFailed alimentam os callbacks do producer.
func (s *Settlement) EventPublished(topic string) { s.Events.WithLabelValues(topic, "ok").Inc() }
func (s *Settlement) EventFailed(topic string)    { s.Events.WithLabelValues(topic, "error").Inc() }
