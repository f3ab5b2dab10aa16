package resolver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// CheckReveal confere (choice, nonce) contra o commitment do ticket.
func CheckReveal(commitment [32]byte, choice uint8, nonce uint64) error {
	if choice != domain.Heads && choice != domain.Tails {
		return domain.ErrInvalidOutcome
	}
	got := domain.Commit(choice, nonce)
	if subtle.ConstantTimeCompare(got[:], commitment[:]) != 1 {
		return domain.ErrInvalidReveal
	}
	return nil
}

// FlipOutcome calcula SHA-256(seed ‖ participant ‖ nonce_le)[0] % 2.
// A seed precisa ser sorteada no momento do reveal, nunca antes.
func FlipOutcome(seed [32]byte, participant string, nonce uint64) int {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte(participant))
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	return int(h.Sum(nil)[0] % 2)
}
