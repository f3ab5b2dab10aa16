package funds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	walletdto "github.com/radieske/wager-settlement-engine/internal/settlement/funds/dto"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// WalletClient fala com o wallet-service, que guarda os saldos em Postgres.
// Token vai em cada transferência; sem ele o wallet-service recusa mover saldo.
type WalletClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewWalletClient(base, token string) *WalletClient {
	return &WalletClient{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *WalletClient) Transfer(ctx context.Context, t engine.Transfer) error {
	amount, err := money.ToInt64(t.Amount)
	if err != nil {
		return err
	}
	body, _ := json.Marshal(walletdto.TransferRequest{From: t.From, To: t.To, Amount: amount, ExternalRef: t.Ref})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/transfer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set(walletdto.ServiceTokenHeader, c.Token)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusConflict:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if strings.Contains(string(msg), domain.ErrInsufficientFunds.Error()) {
			return fmt.Errorf("%s: %w", t.From, domain.ErrInsufficientFunds)
		}
		return fmt.Errorf("wallet transfer http %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	case res.StatusCode >= 300:
		return fmt.Errorf("wallet transfer http %d", res.StatusCode)
	}
	var out walletdto.TransferResponse
	return json.NewDecoder(res.Body).Decode(&out)
}
