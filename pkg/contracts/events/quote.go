package events

import "time"

// PriceQuote é a cotação enviada pelo fornecedor via WebSocket e repassada
// pelo tópico "price_quotes". Price é inteiro em unidades de 10^Expo.
type PriceQuote struct {
	FeedID      string    `json:"feedId"`
	Price       int64     `json:"price"`
	Expo        int32     `json:"expo"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
	Version     int       `json:"version"`
}
