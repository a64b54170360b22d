package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

// AccountRepository implements [models.Repository] for [models.Account] persistence.
type AccountRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Account] = (*AccountRepository)(nil)

// NewAccountRepository creates a new [AccountRepository] with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account with a sequence number, generating an ID when the account has none.
//
// A name or ID already in use reports [shared.ErrDuplicateAccount].
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID() == "" {
		account.SetID(shared.GenerateID())
	}

	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.insert(ctx, tx, account)
	})
}

func (r *AccountRepository) insert(ctx context.Context, exec DBExecutor, account *models.Account) error {
	sequence, err := NextSequence(ctx, exec, "accounts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `INSERT INTO accounts (id, sequence, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err = exec.ExecContext(ctx, query, account.ID(), sequence, account.Name(), account.CreatedAt(), account.UpdatedAt())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateAccount, account.Name())
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	account.SetSequence(sequence)
	return nil
}

// Ensure returns the account with id, creating it with name when it does not exist yet.
//
// Used for identities vouched for by an external authenticator, so a new ID is never rejected:
// when name is taken the ID doubles as the name, and when that is taken too a random suffix is added.
func (r *AccountRepository) Ensure(ctx context.Context, id, name string) (*models.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", shared.ErrInvalidInput)
	}
	if name == "" {
		name = id
	}

	var account *models.Account
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := r.scanOne(tx.QueryRowContext(ctx, selectAccount+` WHERE id = ?`, id))
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		free, err := availableName(ctx, tx, name, id)
		if err != nil {
			return err
		}

		account = models.NewAccount(free)
		account.SetID(id)
		if err := account.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return r.insert(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// availableName returns the first candidate not already used as a name (ignoring case),
// falling back to the last candidate plus a random suffix.
func availableName(ctx context.Context, exec DBExecutor, candidates ...string) (string, error) {
	last := candidates[len(candidates)-1]
	for attempt := 0; ; attempt++ {
		var name string
		if attempt < len(candidates) {
			name = clipName(candidates[attempt], models.MaxAccountNameLength)
		} else {
			suffix := "-" + shared.GenerateID()[:8]
			name = clipName(last, models.MaxAccountNameLength-len(suffix)) + suffix
		}

		var taken bool
		if err := exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE name = ? COLLATE NOCASE)`, name).Scan(&taken); err != nil {
			return "", fmt.Errorf("failed to check account name: %w", err)
		}
		if !taken {
			return name, nil
		}
	}
}

func clipName(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

const selectAccount = `SELECT id, sequence, name, created_at, updated_at FROM accounts`

// Get retrieves an account by ID
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectAccount+` WHERE id = ?`, id))
}

// GetByName retrieves an account by name, ignoring case
func (r *AccountRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectAccount+` WHERE name = ? COLLATE NOCASE`, name))
}

// Delete removes an account. Its library entries are removed with it.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// List retrieves all accounts in creation order
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+` ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", shared.ErrNotFound)
	}
	return account, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		id        string
		sequence  int
		name      string
		createdAt time.Time
		updatedAt time.Time
	)

	if err := s.Scan(&id, &sequence, &name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account := models.NewAccount(name)
	account.SetID(id)
	account.SetSequence(sequence)
	account.SetCreatedAt(createdAt)
	account.SetUpdatedAt(updatedAt)
	return account, nil
}
