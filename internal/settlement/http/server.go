package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/dto"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// PriceReader lê cotações persistidas pelo price-processor.
type PriceReader interface {
	ListCurrent(ctx context.Context) ([]events.PriceQuote, error)
	History(ctx context.Context, feedID string, limit int) ([]events.PriceQuote, error)
}

// API expõe o engine de liquidação via REST.
// A identidade de quem chama vem no corpo (caller/participant); o engine só autoriza.
type API struct {
	Engine *engine.Engine
	Log    *zap.Logger
	// Quotes, se presente, atende o WebSocket de cotações ao vivo
	Quotes http.HandlerFunc
	Prices PriceReader
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1/treasury", func(r chi.Router) {
		r.Post("/", a.initTreasury)
		r.Get("/", a.getTreasury)
		r.Post("/withdraw", a.withdrawFees)
	})
	r.Post("/v1/bankroll/fund", a.fundBankroll)
	r.Post("/v1/bankroll/withdraw", a.withdrawBankroll)

	r.Route("/v1/markets", func(r chi.Router) {
		r.Post("/", a.createMarket)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getMarket)
			r.Post("/start", a.transition(a.Engine.StartMarket))
			r.Post("/lock", a.transition(a.Engine.LockMarket))
			r.Post("/cancel", a.transition(a.Engine.CancelMarket))
			r.Post("/resolve", a.resolveMarket)
			r.Post("/sweep", a.sweepResidual)

			r.Get("/wagers", a.listWagers)
			r.Post("/wagers", a.placeWager)
			r.Route("/wagers/{participant}", func(r chi.Router) {
				r.Get("/", a.getWager)
				r.Post("/claim", a.settle(a.Engine.Claim))
				r.Post("/refund", a.settle(a.Engine.Refund))
				r.Post("/reveal", a.reveal)
				r.Post("/verified", a.verified)
				r.Post("/timeout", a.settle(a.Engine.TimeoutResolve))
			})
		})
	})

	if a.Quotes != nil {
		r.Get("/v1/quotes/ws", a.Quotes)
	}
	if a.Prices != nil {
		r.Get("/v1/quotes", a.listQuotes)
		r.Get("/v1/quotes/history", a.quoteHistory)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf traduz a classe do erro em status HTTP.
func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindResource:
		return http.StatusUnprocessableEntity
	case domain.KindExternal:
		return http.StatusBadGateway
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuth:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marca payloads malformados, antes de chegar ao engine.
var errBadRequest = errors.New("bad request")

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	if errors.Is(err, errBadRequest) {
		kind = domain.KindValidation
	}
	status := statusOf(kind)
	if status >= 500 {
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad json", errBadRequest)
	}
	return nil
}

func decodeCommitment(s string) ([32]byte, error) {
	var c [32]byte
	if s == "" {
		return c, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(c) {
		return c, fmt.Errorf("%w: commitment must be 32 bytes hex", domain.ErrInvalidCommitment)
	}
	copy(c[:], b)
	return c, nil
}

// --- tesouraria ---

func (a *API) initTreasury(w http.ResponseWriter, r *http.Request) {
	var req dto.InitTreasuryRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.Engine.InitTreasury(r.Context(), req.Owner)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewTreasury(t))
}

func (a *API) getTreasury(w http.ResponseWriter, r *http.Request) {
	t, err := a.Engine.Treasury(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTreasury(t))
}

func (a *API) withdrawFees(w http.ResponseWriter, r *http.Request) {
	a.houseFunds(w, r, a.Engine.WithdrawTreasury)
}

func (a *API) fundBankroll(w http.ResponseWriter, r *http.Request) {
	a.houseFunds(w, r, a.Engine.FundBankroll)
}

func (a *API) withdrawBankroll(w http.ResponseWriter, r *http.Request) {
	a.houseFunds(w, r, a.Engine.WithdrawBankroll)
}

type houseOp func(ctx context.Context, caller string, amount uint64) error

func (a *API) houseFunds(w http.ResponseWriter, r *http.Request, op houseOp) {
	var req dto.HouseFundsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := op(r.Context(), req.Caller, req.Lamports); err != nil {
		a.fail(w, r, err)
		return
	}
	a.getTreasury(w, r)
}

// --- mercados ---

func (a *API) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := decodeCommitment(req.Commitment)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.Engine.CreateMarket(r.Context(), engine.MarketSpec{
		Game:       domain.Game(req.Game),
		Creator:    req.Creator,
		Labels:     req.Labels,
		FeedA:      req.FeedA,
		FeedB:      req.FeedB,
		Commitment: c,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewMarket(m))
}

func (a *API) getMarket(w http.ResponseWriter, r *http.Request) {
	m, err := a.Engine.Market(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewMarket(m))
}

type transitionOp func(ctx context.Context, caller, id string) (*domain.Market, error)

// transition cobre start, lock e cancel, que só diferem na operação do engine.
func (a *API) transition(op transitionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CallerRequest
		if err := decode(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		m, err := op(r.Context(), req.Caller, chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewMarket(m))
	}
}

func (a *API) resolveMarket(w http.ResponseWriter, r *http.Request) {
	// corpo opcional: só o jogo verificado precisa de prova
	var req dto.ProofRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	m, err := a.Engine.ResolveMarket(r.Context(), chi.URLParam(r, "id"), req.Proof)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewMarket(m))
}

func (a *API) sweepResidual(w http.ResponseWriter, r *http.Request) {
	var req dto.CallerRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	residual, err := a.Engine.SweepResidual(r.Context(), req.Caller, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SweepResponse{MarketID: id, Residual: dto.NewAmount(residual)})
}

// --- apostas ---

func (a *API) listWagers(w http.ResponseWriter, r *http.Request) {
	es, err := a.Engine.Entries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWagers(es))
}

func (a *API) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := decodeCommitment(req.Commitment)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	e, err := a.Engine.PlaceWager(r.Context(), engine.Wager{
		MarketID:    chi.URLParam(r, "id"),
		Participant: req.Participant,
		Slot:        req.Slot,
		Amount:      req.Lamports,
		Commitment:  c,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewWager(e))
}

func (a *API) getWager(w http.ResponseWriter, r *http.Request) {
	e, err := a.Engine.Entry(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participant"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWager(e))
}

type settleOp func(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error)

// settle cobre claim, refund e timeout; o participante vem da rota.
func (a *API) settle(op settleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := op(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participant"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewWager(e))
	}
}

func (a *API) reveal(w http.ResponseWriter, r *http.Request) {
	var req dto.RevealRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	e, err := a.Engine.Reveal(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participant"), req.Choice, req.Nonce)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWager(e))
}

func (a *API) verified(w http.ResponseWriter, r *http.Request) {
	var req dto.ProofRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if len(req.Proof) == 0 {
		a.fail(w, r, fmt.Errorf("%w: proof required", errBadRequest))
		return
	}
	e, err := a.Engine.SubmitVerifiedResult(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participant"), req.Proof)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWager(e))
}

// --- cotações ---

func (a *API) listQuotes(w http.ResponseWriter, r *http.Request) {
	qs, err := a.Prices.ListCurrent(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// quoteHistory usa query string porque o id do feed tem barra (SOL/USD).
func (a *API) quoteHistory(w http.ResponseWriter, r *http.Request) {
	feed := r.URL.Query().Get("feed")
	if feed == "" {
		a.fail(w, r, fmt.Errorf("%w: feed required", errBadRequest))
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			a.fail(w, r, fmt.Errorf("%w: limit must be 1..1000", errBadRequest))
			return
		}
		limit = n
	}
	qs, err := a.Prices.History(r.Context(), feed, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}
