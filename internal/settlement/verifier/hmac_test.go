package verifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

func TestHMACVerify(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	deck := domain.Subject{Commitment: [32]byte{9, 9, 9}, MarketID: "poker-1"}
	v := NewHMAC("s3cret", time.Minute)
	v.Now = func() time.Time { return now }

	proof, err := Sign([]byte("s3cret"), deck, domain.Outcome{Slot: 2}, now.Add(-10*time.Second))
	require.NoError(t, err)

	out, err := v.Verify(ctx, proof, deck)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Slot)

	_, err = v.Verify(ctx, proof, domain.Subject{Commitment: [32]byte{1}, MarketID: "poker-1"})
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	forged, err := Sign([]byte("other"), deck, domain.Outcome{Slot: 2}, now)
	require.NoError(t, err)
	_, err = v.Verify(ctx, forged, deck)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, err = v.Verify(ctx, []byte("{"), deck)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	old, err := Sign([]byte("s3cret"), deck, domain.Outcome{Slot: 2}, now.Add(-2*time.Minute))
	require.NoError(t, err)
	_, err = v.Verify(ctx, old, deck)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestHMACRejectsTamperedOutcome(t *testing.T) {
	ticket := domain.Subject{Commitment: domain.Commit(domain.Heads, 77), MarketID: "flip-1", Participant: "alice"}
	proof, err := Sign([]byte("k"), ticket, domain.Outcome{Slot: domain.Heads, PlayerWins: false}, time.Now())
	require.NoError(t, err)

	var a Attestation
	require.NoError(t, json.Unmarshal(proof, &a))
	a.PlayerWins = true
	tampered, err := json.Marshal(a)
	require.NoError(t, err)

	_, err = NewHMAC("k", 0).Verify(context.Background(), tampered, ticket)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestHMACBindsMarketAndParticipant(t *testing.T) {
	ctx := context.Background()
	v := NewHMAC("k", 0)
	alice := domain.Subject{Commitment: domain.Commit(domain.Tails, 5), MarketID: "flip-1", Participant: "alice"}
	proof, err := Sign([]byte("k"), alice, domain.Outcome{Slot: domain.Tails, PlayerWins: true}, time.Now())
	require.NoError(t, err)

	_, err = v.Verify(ctx, proof, alice)
	require.NoError(t, err)

	// mesmo commitment, outro dono
	mallory := alice
	mallory.Participant = "mallory"
	_, err = v.Verify(ctx, proof, mallory)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	// mesmo commitment em outro mercado
	other := alice
	other.MarketID = "flip-2"
	_, err = v.Verify(ctx, proof, other)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	// reescrever o participante no JSON quebra a assinatura
	var a Attestation
	require.NoError(t, json.Unmarshal(proof, &a))
	a.Participant = "mallory"
	rebound, err := json.Marshal(a)
	require.NoError(t, err)
	_, err = v.Verify(ctx, rebound, mallory)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, err = Sign([]byte("k"), domain.Subject{Commitment: alice.Commitment}, domain.Outcome{}, time.Now())
	assert.Error(t, err)
}
