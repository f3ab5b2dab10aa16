// Package verifier confere resultados assinados pelo dealer MPC. O dealer e o
// settlement-service compartilham um segredo; a prova é um JSON assinado com
// HMAC-SHA256 que amarra o resultado ao commitment do baralho ou do ticket, ao
// mercado e, no flip, ao participante dono do ticket.
package verifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// Attestation é o formato da prova entregue pelo dealer.
type Attestation struct {
	Commitment  string `json:"commitment"` // hex
	MarketID    string `json:"market_id"`
	Participant string `json:"participant,omitempty"`
	Slot        int    `json:"slot"`
	PlayerWins  bool   `json:"player_wins"`
	IssuedAt    int64  `json:"issued_at"` // unix
	Signature   string `json:"signature"` // base64
}

// HMAC implementa resolver.Verifier.
type HMAC struct {
	Secret []byte
	MaxAge time.Duration // 0 desliga a checagem de idade
	Now    func() time.Time
}

func NewHMAC(secret string, maxAge time.Duration) *HMAC {
	return &HMAC{Secret: []byte(secret), MaxAge: maxAge, Now: time.Now}
}

func (h *HMAC) Verify(_ context.Context, proof []byte, subject domain.Subject) (domain.Outcome, error) {
	var a Attestation
	if err := json.Unmarshal(proof, &a); err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: malformed proof: %v", domain.ErrVerificationFailed, err)
	}
	if a.Commitment != hex.EncodeToString(subject.Commitment[:]) {
		return domain.Outcome{}, fmt.Errorf("%w: commitment mismatch", domain.ErrVerificationFailed)
	}
	if subject.MarketID == "" || a.MarketID != subject.MarketID {
		return domain.Outcome{}, fmt.Errorf("%w: market mismatch", domain.ErrVerificationFailed)
	}
	if a.Participant != subject.Participant {
		return domain.Outcome{}, fmt.Errorf("%w: participant mismatch", domain.ErrVerificationFailed)
	}
	sig, err := base64.StdEncoding.DecodeString(a.Signature)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: signature encoding", domain.ErrVerificationFailed)
	}
	if !hmac.Equal(sig, mac(h.Secret, a)) {
		return domain.Outcome{}, fmt.Errorf("%w: bad signature", domain.ErrVerificationFailed)
	}
	if h.MaxAge > 0 {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		if now().Sub(time.Unix(a.IssuedAt, 0)) > h.MaxAge {
			return domain.Outcome{}, fmt.Errorf("%w: attestation expired", domain.ErrVerificationFailed)
		}
	}
	return domain.Outcome{Slot: a.Slot, PlayerWins: a.PlayerWins}, nil
}

// Sign produz uma prova no formato aceito por Verify. Usado pelo dealer de
// desenvolvimento no quote-simulator e nos testes.
func Sign(secret []byte, subject domain.Subject, out domain.Outcome, issuedAt time.Time) ([]byte, error) {
	if subject.MarketID == "" {
		return nil, errors.New("attestation requires a market id")
	}
	a := Attestation{
		Commitment:  hex.EncodeToString(subject.Commitment[:]),
		MarketID:    subject.MarketID,
		Participant: subject.Participant,
		Slot:        out.Slot,
		PlayerWins:  out.PlayerWins,
		IssuedAt:    issuedAt.Unix(),
	}
	a.Signature = base64.StdEncoding.EncodeToString(mac(secret, a))
	return json.Marshal(a)
}

// mac cobre o JSON de todos os campos menos a assinatura.
func mac(secret []byte, a Attestation) []byte {
	a.Signature = ""
	body, _ := json.Marshal(a) // só strings, ints e bools: não falha
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return m.Sum(nil)
}
