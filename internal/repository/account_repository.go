package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAccountRepository implements [hireauth.AccountProvider] over the
// accounts table.
type BunAccountRepository struct {
	db *bun.DB
}

var _ hireauth.AccountProvider = (*BunAccountRepository)(nil)

// NewBunAccountRepository creates an account repository over db.
func NewBunAccountRepository(db *bun.DB) *BunAccountRepository {
	return &BunAccountRepository{db: db}
}

// Create inserts a new account. hash must already be a password hash.
func (r *BunAccountRepository) Create(ctx context.Context, account, nickname, hash string) (*models.Account, error) {
	if account == "" {
		return nil, errors.New("account is empty")
	}
	now := time.Now().UTC()
	acc := &models.Account{
		Account:      account,
		Nickname:     nickname,
		PasswordHash: hash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.db.NewInsert().Model(acc).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

func (r *BunAccountRepository) get(ctx context.Context, account string) (*models.Account, error) {
	acc := new(models.Account)
	err := r.db.NewSelect().
		Model(acc).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", hireauth.ErrAccountNotFound, account)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// GetAccount returns the credential view of account.
func (r *BunAccountRepository) GetAccount(ctx context.Context, account string) (hireauth.AccountRecord, error) {
	acc, err := r.get(ctx, account)
	if err != nil {
		return hireauth.AccountRecord{}, err
	}
	return hireauth.AccountRecord{
		Account:      acc.Account,
		UserID:       acc.ID,
		PasswordHash: acc.PasswordHash,
		Nickname:     acc.Nickname,
		Enabled:      acc.Enabled,
	}, nil
}

// UpdatePasswordHash replaces the stored hash of account.
func (r *BunAccountRepository) UpdatePasswordHash(ctx context.Context, account, hash string) error {
	return r.update(ctx, account, "password_hash = ?", hash)
}

// SetEnabled flips the persistent enabled flag. Session-level disabling is
// handled by the engine's disabled marker; this flag gates future logins.
func (r *BunAccountRepository) SetEnabled(ctx context.Context, account string, enabled bool) error {
	return r.update(ctx, account, "enabled = ?", enabled)
}

func (r *BunAccountRepository) update(ctx context.Context, account, set string, value any) error {
	result, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set(set, value).
		Set("updated_at = ?", time.Now().UTC()).
		Where("account = ?", account).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", hireauth.ErrAccountNotFound, account)
	}
	return nil
}
