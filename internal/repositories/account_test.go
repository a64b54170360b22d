package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	tu "github.com/desertthunder/movieweb/internal/testing"
)

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		t.Run("Generates ID", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			account := models.NewAccount("alice")

			if err := repo.Create(ctx, account); err != nil {
				t.Fatalf("failed to create account: %v", err)
			}
			if account.ID() == "" {
				t.Error("account ID should be set after creation")
			}
			if account.Sequence() != 1 {
				t.Errorf("expected sequence 1, got %d", account.Sequence())
			}
		})

		t.Run("Keeps Supplied ID", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			account := models.NewAccount("alice")
			account.SetID("u1")

			if err := repo.Create(ctx, account); err != nil {
				t.Fatalf("failed to create account: %v", err)
			}

			got, err := repo.Get(ctx, "u1")
			if err != nil {
				t.Fatalf("failed to get account: %v", err)
			}
			if got.Name() != "alice" {
				t.Errorf("expected name alice, got %s", got.Name())
			}
		})

		t.Run("Duplicate Name", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			if err := repo.Create(ctx, models.NewAccount("alice")); err != nil {
				t.Fatalf("failed to create first account: %v", err)
			}

			err := repo.Create(ctx, models.NewAccount("ALICE"))
			if !errors.Is(err, shared.ErrDuplicateAccount) {
				t.Errorf("expected ErrDuplicateAccount, got %v", err)
			}
		})

		t.Run("Validation Error", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			err := repo.Create(ctx, models.NewAccount("   "))
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			if _, err := repo.Get(ctx, "nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("ByName", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			account := models.NewAccount("Alice")
			if err := repo.Create(ctx, account); err != nil {
				t.Fatalf("failed to create account: %v", err)
			}

			got, err := repo.GetByName(ctx, "alice")
			if err != nil {
				t.Fatalf("failed to get account by name: %v", err)
			}
			if got.ID() != account.ID() {
				t.Errorf("expected ID %s, got %s", account.ID(), got.ID())
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		repo := NewAccountRepository(tu.SetupTestDB(t))
		for _, name := range []string{"one", "two", "three"} {
			if err := repo.Create(ctx, models.NewAccount(name)); err != nil {
				t.Fatalf("failed to create account: %v", err)
			}
		}

		accounts, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list accounts: %v", err)
		}
		if len(accounts) != 3 {
			t.Fatalf("expected 3 accounts, got %d", len(accounts))
		}
		if accounts[0].Name() != "one" || accounts[2].Name() != "three" {
			t.Errorf("expected creation order, got %s..%s", accounts[0].Name(), accounts[2].Name())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("Cascades To Entries", func(t *testing.T) {
			db := tu.SetupTestDB(t)
			accounts := NewAccountRepository(db)
			library := NewLibraryRepository(db)
			seedAccounts(t, db, "u1", "u2")

			if _, err := library.Insert(ctx, "u1", fields("Inception", tu.StrPtr("tt1375666"), tu.IntPtr(2010))); err != nil {
				t.Fatalf("failed to insert entry: %v", err)
			}
			if _, err := library.Insert(ctx, "u2", fields("Inception", tu.StrPtr("tt1375666"), tu.IntPtr(2010))); err != nil {
				t.Fatalf("failed to insert entry: %v", err)
			}

			if err := accounts.Delete(ctx, "u1"); err != nil {
				t.Fatalf("failed to delete account: %v", err)
			}

			if n, _ := library.Count(ctx, "u1"); n != 0 {
				t.Errorf("expected u1 entries to be removed, %d remain", n)
			}
			if n, _ := library.Count(ctx, "u2"); n != 1 {
				t.Errorf("expected u2 entries to survive, got %d", n)
			}
		})

		t.Run("NotFound", func(t *testing.T) {
			repo := NewAccountRepository(tu.SetupTestDB(t))
			if err := repo.Delete(ctx, "nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Ensure", func(t *testing.T) {
		repo := NewAccountRepository(tu.SetupTestDB(t))

		first, err := repo.Ensure(ctx, "sub-123", "carol")
		if err != nil {
			t.Fatalf("failed to ensure account: %v", err)
		}
		if first.Name() != "carol" {
			t.Errorf("expected name carol, got %s", first.Name())
		}

		again, err := repo.Ensure(ctx, "sub-123", "someone else")
		if err != nil {
			t.Fatalf("failed to ensure existing account: %v", err)
		}
		if again.Name() != "carol" || again.Sequence() != first.Sequence() {
			t.Errorf("expected existing account to be returned, got %s #%d", again.Name(), again.Sequence())
		}

		clash, err := repo.Ensure(ctx, "sub-456", "carol")
		if err != nil {
			t.Fatalf("failed to ensure account with taken name: %v", err)
		}
		if clash.Name() != "sub-456" {
			t.Errorf("expected ID to be used as name, got %s", clash.Name())
		}

		if _, err := repo.Ensure(ctx, "", "x"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Ensure Case Variant IDs", func(t *testing.T) {
		repo := NewAccountRepository(tu.SetupTestDB(t))

		lower, err := repo.Ensure(ctx, "aB3x", "aB3x")
		if err != nil {
			t.Fatalf("failed to ensure first account: %v", err)
		}
		upper, err := repo.Ensure(ctx, "Ab3X", "Ab3X")
		if err != nil {
			t.Fatalf("distinct ID differing only in case was rejected: %v", err)
		}
		if upper.ID() != "Ab3X" || upper.ID() == lower.ID() {
			t.Errorf("expected a separate account for Ab3X, got %s", upper.ID())
		}
		if strings.EqualFold(upper.Name(), lower.Name()) {
			t.Errorf("expected a distinct display name, both are %q", upper.Name())
		}
		if !strings.HasPrefix(upper.Name(), "Ab3X-") {
			t.Errorf("expected suffixed name, got %q", upper.Name())
		}

		again, err := repo.Ensure(ctx, "Ab3X", "Ab3X")
		if err != nil || again.Name() != upper.Name() {
			t.Errorf("expected existing account on repeat, got %v (%v)", again, err)
		}

		long := strings.Repeat("z", models.MaxAccountNameLength+10)
		if _, err := repo.Ensure(ctx, long, long); err != nil {
			t.Errorf("long ID should be accepted with a clipped name: %v", err)
		}
	})
}
