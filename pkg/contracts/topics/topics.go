package topics

const (
	// Apostas
	WagerPlaced  = "wager_placed"
	WagerSettled = "wager_settled"

	// Mercados
	MarketResolved = "market_resolved"

	// Casa
	TreasuryMoved = "treasury_moved"

	// Cotações vindas do fornecedor (lutas de preço)
	PriceQuotes = "price_quotes"
)
