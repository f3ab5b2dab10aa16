package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrSameWallet        = errors.New("transfer to the same wallet")
)

// Migrate cria as tabelas da wallet se ainda não existirem.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate wallet schema: %w", err)
	}
	return nil
}

// ensureWallet cria a carteira do dono se ainda não existir.
func ensureWallet(ctx context.Context, tx *sql.Tx, owner string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, owner_id, balance_lamports, version) VALUES($1,$2,0,1) ON CONFLICT (owner_id) DO NOTHING`,
		uuid.New().String(), owner)
	return err
}

// GetOrCreateWallet retorna o walletId e saldo de um dono, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, owner string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if err = ensureWallet(ctx, tx, owner); err != nil {
		return "", 0, err
	}
	if err = tx.QueryRowContext(ctx, `SELECT id, balance_lamports FROM wallets WHERE owner_id=$1`, owner).Scan(&walletID, &balance); err != nil {
		return "", 0, err
	}
	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, balance, nil
}

// Deposit credita saldo vindo de fora do sistema (faucet/dev) e registra no ledger.
// Com externalRef, repetir o depósito não credita de novo.
func (p *Postgres) Deposit(ctx context.Context, owner string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if err = ensureWallet(ctx, tx, owner); err != nil {
		return "", 0, err
	}
	if err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE owner_id=$1 FOR UPDATE`, owner).Scan(&walletID); err != nil {
		return "", 0, err
	}

	credit := true
	if externalRef != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO wallet_transfers(id, external_ref, from_owner, to_owner, amount_lamports)
			VALUES($1,$2,'deposit',$3,$4) ON CONFLICT (external_ref) DO NOTHING`,
			uuid.New().String(), "deposit:"+externalRef, owner, amount)
		if err != nil {
			return "", 0, err
		}
		n, _ := res.RowsAffected()
		credit = n == 1
	}

	if credit {
		if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_lamports = balance_lamports + $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
			return "", 0, err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_lamports, description) VALUES($1,'CREDIT',$2,$3)`,
			walletID, amount, "deposit:"+externalRef); err != nil {
			return "", 0, err
		}
	}

	if err = tx.QueryRowContext(ctx, `SELECT balance_lamports FROM wallets WHERE id=$1`, walletID).Scan(&newBalance); err != nil {
		return "", 0, err
	}
	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, nil
}

// Transfer move lamports entre duas carteiras numa única transação.
// Idempotente por externalRef: uma ref já aplicada devolve a transferência
// original com duplicate=true e não mexe em saldo.
// As duas carteiras são travadas em ordem de owner_id para evitar deadlock.
func (p *Postgres) Transfer(ctx context.Context, from, to string, amount int64, externalRef string) (transferID string, duplicate bool, err error) {
	if from == to {
		return "", false, ErrSameWallet
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	if id, ok, err := findTransfer(ctx, tx, externalRef); err != nil || ok {
		return id, ok, err
	}

	owners := []string{from, to}
	sort.Strings(owners)
	for _, o := range owners {
		if err = ensureWallet(ctx, tx, o); err != nil {
			return "", false, err
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, owner_id, balance_lamports FROM wallets WHERE owner_id = ANY($1) ORDER BY owner_id FOR UPDATE`,
		pq.Array(owners))
	if err != nil {
		return "", false, err
	}
	ids := map[string]string{}
	var fromBalance int64
	for rows.Next() {
		var id, owner string
		var bal int64
		if err = rows.Scan(&id, &owner, &bal); err != nil {
			rows.Close()
			return "", false, err
		}
		ids[owner] = id
		if owner == from {
			fromBalance = bal
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return "", false, err
	}

	if fromBalance < amount {
		return "", false, ErrInsufficientFunds
	}

	transferID = uuid.New().String()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transfers(id, external_ref, from_owner, to_owner, amount_lamports)
		VALUES($1,$2,$3,$4,$5)`, transferID, externalRef, from, to, amount); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// outra requisição com a mesma ref ganhou a corrida
			return "", true, nil
		}
		return "", false, err
	}

	moves := []struct {
		owner, op string
		delta     int64
	}{
		{from, "DEBIT", -amount},
		{to, "CREDIT", amount},
	}
	for _, m := range moves {
		if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_lamports = balance_lamports + $1, version = version + 1 WHERE id=$2`,
			m.delta, ids[m.owner]); err != nil {
			return "", false, err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_lamports, description) VALUES($1,$2,$3,$4)`,
			ids[m.owner], m.op, amount, "transfer:"+externalRef); err != nil {
			return "", false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", false, err
	}
	return transferID, false, nil
}

func findTransfer(ctx context.Context, tx *sql.Tx, externalRef string) (string, bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM wallet_transfers WHERE external_ref=$1`, externalRef).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
