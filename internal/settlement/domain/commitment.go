package domain

import (
	"crypto/sha256"
	"encoding/binary"
)

// Escolhas do coin flip.
const (
	Heads = 0
	Tails = 1
)

// Commit calcula SHA-256(choice ‖ nonce_le), o mesmo formato gerado pelos clientes.
func Commit(choice uint8, nonce uint64) [32]byte {
	var buf [9]byte
	buf[0] = choice
	binary.LittleEndian.PutUint64(buf[1:], nonce)
	return sha256.Sum256(buf[:])
}

// Subject identifica o que uma prova MPC resolve. Participant fica vazio no
// showdown de poker, em que a prova resolve o mercado inteiro.
type Subject struct {
	Commitment  [32]byte
	MarketID    string
	Participant string
}
