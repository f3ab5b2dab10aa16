package domain

import (
	"errors"

	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// Validação: rejeitados antes de qualquer mudança de estado.
var (
	ErrStakeOutOfRange     = errors.New("stake out of range")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrInvalidSlotCount    = errors.New("invalid outcome slot count")
	ErrInvalidReveal       = errors.New("reveal does not match commitment")
	ErrInvalidCommitment   = errors.New("commitment required")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnknownGame         = errors.New("unknown game")
	ErrUnsupportedStrategy = errors.New("operation not supported by market strategy")
)

// Conflito de estado: rejeitados sem efeito parcial.
var (
	ErrMarketNotOpen         = errors.New("market not open")
	ErrMarketNotRunning      = errors.New("market not running")
	ErrMarketNotReady        = errors.New("market betting window not complete")
	ErrMarketNotResolved     = errors.New("market not resolved")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrMarketNotCancelled    = errors.New("market not cancelled")
	ErrDuplicateWager        = errors.New("participant already has a wager on this market")
	ErrCommitmentInUse       = errors.New("commitment already used on this market")
	ErrSlotOccupied          = errors.New("outcome slot already taken")
	ErrAlreadyClaimed        = errors.New("wager already claimed")
	ErrNotWinner             = errors.New("wager did not win")
	ErrTicketResolved        = errors.New("ticket already resolved")
	ErrRevealTimeout         = errors.New("reveal window elapsed")
	ErrTimeoutNotReached     = errors.New("reveal timeout not reached")
	ErrWagerNotResolved      = errors.New("wager not resolved")
	ErrResidualPending       = errors.New("winning wagers still unclaimed")
	ErrResidualSwept         = errors.New("market residual already swept")
	ErrTreasuryExists        = errors.New("treasury already initialized")
	ErrUnauthorized          = errors.New("caller not authorized")
)

// Recursos.
var (
	ErrInsufficientTreasury = errors.New("insufficient treasury balance")
	ErrInsufficientBankroll = errors.New("insufficient house bankroll")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrEscrowShortfall      = errors.New("escrow balance below payout")
)

// Dependências externas: a resolução falha inteira e o mercado fica como estava.
var (
	ErrStalePriceFeed        = errors.New("stale or missing price feed")
	ErrVerificationFailed    = errors.New("outcome verification failed")
	ErrRandomnessUnavailable = errors.New("randomness source unavailable")
)

// Não encontrado.
var (
	ErrMarketNotFound   = errors.New("market not found")
	ErrEntryNotFound    = errors.New("wager not found")
	ErrTreasuryNotFound = errors.New("treasury not initialized")
)

// ErrorKind classifica erros para a camada de transporte.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindResource   ErrorKind = "resource"
	KindExternal   ErrorKind = "external"
	KindNotFound   ErrorKind = "not_found"
	KindAuth       ErrorKind = "unauthorized"
	KindInternal   ErrorKind = "internal"
)

var kinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{ErrStakeOutOfRange, ErrInvalidOutcome, ErrInvalidSlotCount, ErrInvalidReveal,
		ErrInvalidCommitment, ErrInvalidPrice, ErrInvalidAmount, ErrUnknownGame, ErrUnsupportedStrategy, money.ErrInvalidBPS}},
	{KindConflict, []error{ErrMarketNotOpen, ErrMarketNotRunning, ErrMarketNotReady, ErrMarketNotResolved,
		ErrMarketAlreadyResolved, ErrMarketNotCancelled, ErrDuplicateWager, ErrCommitmentInUse, ErrSlotOccupied, ErrAlreadyClaimed,
		ErrNotWinner, ErrTicketResolved, ErrRevealTimeout, ErrTimeoutNotReached, ErrWagerNotResolved,
		ErrResidualPending, ErrResidualSwept, ErrTreasuryExists}},
	{KindResource, []error{ErrInsufficientTreasury, ErrInsufficientBankroll, ErrInsufficientFunds,
		ErrEscrowShortfall, money.ErrOverflow, money.ErrUnderflow}},
	{KindExternal, []error{ErrStalePriceFeed, ErrVerificationFailed, ErrRandomnessUnavailable}},
	{KindNotFound, []error{ErrMarketNotFound, ErrEntryNotFound, ErrTreasuryNotFound}},
	{KindAuth, []error{ErrUnauthorized}},
}

// KindOf devolve a classe de um erro do engine; erros desconhecidos são internos.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindInternal
}
