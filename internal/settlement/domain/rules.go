package domain

import (
	"fmt"
	"time"
)

// Game identifica a variante de jogo; cada uma tem suas regras de stake e resolução.
type Game string

const (
	GameDerby Game = "derby"
	GameFight Game = "fight"
	GameFlip  Game = "flip"
	GamePoker Game = "poker"
)

// Strategy é a estratégia de resolução usada por um jogo.
type Strategy string

const (
	StrategyWeightedRandom Strategy = "weighted_random"
	StrategyPriceFeed      Strategy = "price_feed"
	StrategyCommitReveal   Strategy = "commit_reveal"
	StrategyVerified       Strategy = "verified"
)

// PayoutModel define como o claim é calculado.
type PayoutModel string

const (
	PayoutParimutuel      PayoutModel = "parimutuel"
	PayoutDoubleOrNothing PayoutModel = "double_or_nothing"
)

// Rules reúne os parâmetros de um jogo. Os defaults seguem os programas on-chain
// originais e podem ser sobrescritos por arquivo (ver config.LoadGames).
type Rules struct {
	Game     Game        `toml:"-"`
	Strategy Strategy    `toml:"strategy"`
	Payout   PayoutModel `toml:"payout"`

	FeeBPS   uint16 `toml:"fee_bps"`
	MinStake uint64 `toml:"min_stake"`
	MaxStake uint64 `toml:"max_stake"`
	MinSlots int    `toml:"min_slots"`
	MaxSlots int    `toml:"max_slots"`

	// MinParticipants é exigido para Open -> Running.
	MinParticipants uint32 `toml:"min_participants"`
	// BettingWindow é o tempo mínimo aberto antes de Open -> Running.
	BettingWindow Duration `toml:"betting_window"`
	// RequireRunning obriga a passagem por Running antes de resolver.
	RequireRunning bool `toml:"require_running"`
	// SeatPerSlot limita cada slot a um único participante (assentos de poker).
	SeatPerSlot bool `toml:"seat_per_slot"`

	RevealTimeout     Duration `toml:"reveal_timeout"`
	MaxPriceStaleness Duration `toml:"max_price_staleness"`
}

// Duration permite escrever "2m" no arquivo TOML.
type Duration struct{ time.Duration }

// UnmarshalText implementa encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implementa encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.Duration.String()), nil }

func dur(d time.Duration) Duration { return Duration{d} }

// Constantes herdadas dos programas on-chain (lamports).
const (
	LamportsPerSOL  = 1_000_000_000
	DefaultMinStake = 1_000_000       // 0.001 SOL
	DefaultMaxStake = 100_000_000_000 // 100 SOL
	PokerMinBuyIn   = 10_000_000
	PokerMaxBuyIn   = 1_000_000_000_000
)

// RuleBook mapeia cada jogo para suas regras.
type RuleBook map[Game]Rules

// DefaultRules devolve as regras padrão dos quatro jogos.
func DefaultRules() RuleBook {
	return RuleBook{
		GameDerby: {
			Game: GameDerby, Strategy: StrategyWeightedRandom, Payout: PayoutParimutuel,
			FeeBPS: 100, MinStake: DefaultMinStake, MaxStake: DefaultMaxStake,
			MinSlots: 2, MaxSlots: 8, MinParticipants: 1,
			BettingWindow: dur(2 * time.Minute), RequireRunning: true,
		},
		GameFight: {
			Game: GameFight, Strategy: StrategyPriceFeed, Payout: PayoutParimutuel,
			FeeBPS: 100, MinStake: DefaultMinStake, MaxStake: DefaultMaxStake,
			MinSlots: 2, MaxSlots: 2,
			BettingWindow: dur(2 * time.Minute), MaxPriceStaleness: dur(60 * time.Second),
		},
		GameFlip: {
			Game: GameFlip, Strategy: StrategyCommitReveal, Payout: PayoutDoubleOrNothing,
			FeeBPS: 100, MinStake: DefaultMinStake, MaxStake: DefaultMaxStake,
			MinSlots: 2, MaxSlots: 2, RevealTimeout: dur(60 * time.Second),
		},
		GamePoker: {
			Game: GamePoker, Strategy: StrategyVerified, Payout: PayoutParimutuel,
			FeeBPS: 50, MinStake: PokerMinBuyIn, MaxStake: PokerMaxBuyIn,
			MinSlots: 2, MaxSlots: 6, MinParticipants: 2, RequireRunning: true,
			SeatPerSlot: true,
		},
	}
}

// Lookup devolve as regras de um jogo.
func (b RuleBook) Lookup(g Game) (Rules, error) {
	r, ok := b[g]
	if !ok {
		return Rules{}, fmt.Errorf("%w: %q", ErrUnknownGame, g)
	}
	r.Game = g
	return r, nil
}

// Validate checa a consistência das regras carregadas.
func (r Rules) Validate() error {
	switch {
	case r.FeeBPS > 10_000:
		return fmt.Errorf("%s: fee_bps %d above 10000", r.Game, r.FeeBPS)
	case r.MinStake == 0 || r.MinStake > r.MaxStake:
		return fmt.Errorf("%s: invalid stake range [%d, %d]", r.Game, r.MinStake, r.MaxStake)
	case r.MinSlots < 2 || r.MinSlots > r.MaxSlots:
		return fmt.Errorf("%s: invalid slot range [%d, %d]", r.Game, r.MinSlots, r.MaxSlots)
	case r.Payout == PayoutDoubleOrNothing && r.Strategy != StrategyCommitReveal:
		return fmt.Errorf("%s: double_or_nothing requires commit_reveal", r.Game)
	case r.Strategy == StrategyCommitReveal && r.RevealTimeout.Duration <= 0:
		return fmt.Errorf("%s: commit_reveal requires reveal_timeout", r.Game)
	}
	return nil
}
