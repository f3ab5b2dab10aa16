package sim

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/quote-simulator/dto"
	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/verifier"
)

// Dealer assina resultados como o MPC faria, usando o segredo compartilhado.
type Dealer struct {
	Secret []byte
	Log    *zap.Logger
	Now    func() time.Time
}

// AttestHandler atende POST /mpc/attest.
func (d *Dealer) AttestHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req dto.AttestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	raw, err := hex.DecodeString(req.Commitment)
	if err != nil || len(raw) != 32 {
		http.Error(w, "commitment must be 32 bytes hex", http.StatusBadRequest)
		return
	}
	if req.MarketID == "" {
		http.Error(w, "market_id required", http.StatusBadRequest)
		return
	}
	subject := domain.Subject{MarketID: req.MarketID, Participant: req.Participant}
	copy(subject.Commitment[:], raw)

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	proof, err := verifier.Sign(d.Secret, subject, domain.Outcome{Slot: req.Slot, PlayerWins: req.PlayerWins}, now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	d.Log.Info("outcome attested",
		zap.String("market_id", req.MarketID),
		zap.String("participant", req.Participant),
		zap.String("commitment", req.Commitment),
		zap.Int("slot", req.Slot))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dto.AttestResponse{Proof: proof})
}
