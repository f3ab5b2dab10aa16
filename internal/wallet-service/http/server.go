package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/wallet-service/dto"
	"github.com/radieske/wager-settlement-engine/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, owner string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, owner string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Transfer(ctx context.Context, from, to string, amount int64, externalRef string) (transferID string, duplicate bool, err error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo

	// ServiceToken, quando definido, é exigido em deposit e transfer. Só
	// serviços internos (settlement) conhecem o valor.
	ServiceToken string
	OnTransfer   func(status string) // métricas: DONE | DUPLICATE | REJECTED | UNAUTHORIZED
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet", s.getWallet)                      // ?owner=...
	mux.HandleFunc("POST /wallet/deposit", s.internal(s.deposit))   // crédito externo (dev)
	mux.HandleFunc("POST /wallet/transfer", s.internal(s.transfer)) // usado pelo settlement
	return mux
}

// internal barra chamadas sem o token de serviço.
func (s *Server) internal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ServiceToken != "" {
			got := r.Header.Get(dto.ServiceTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.ServiceToken)) != 1 {
				s.count("UNAUTHORIZED")
				s.log.Warn("wallet call without service token", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// getWallet retorna (ou cria) a carteira e saldo do dono
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), owner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{OwnerID: owner, WalletID: walletID, Balance: bal})
}

// deposit adiciona saldo à carteira
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.OwnerID, req.Amount, req.ExternalRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{OwnerID: req.OwnerID, WalletID: walletID, Balance: bal})
}

// transfer move saldo entre carteiras; saldo insuficiente vira 409 com
// "insufficient funds" no corpo, que o cliente do settlement reconhece.
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" || req.Amount <= 0 || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	id, dup, err := s.repo.Transfer(r.Context(), req.From, req.To, req.Amount, req.ExternalRef)
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds), errors.Is(err, repo.ErrSameWallet):
		s.count("REJECTED")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.log.Error("transfer failed", zap.String("ref", req.ExternalRef), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := "DONE"
	if dup {
		status = "DUPLICATE"
	}
	s.count(status)
	s.log.Debug("transfer applied", zap.String("ref", req.ExternalRef), zap.String("status", status))
	writeJSON(w, dto.TransferResponse{TransferID: id, Status: status})
}

func (s *Server) count(status string) {
	if s.OnTransfer != nil {
		s.OnTransfer(status)
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
