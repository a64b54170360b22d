package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/movieweb/internal/shared"
)

// MaxAccountNameLength bounds display names in runes.
const MaxAccountNameLength = 64

// Account is the unit of data ownership. Every [LibraryEntry] belongs to exactly one account.
type Account struct {
	id        string
	sequence  int
	name      string
	createdAt time.Time
	updatedAt time.Time
}

// NewAccount creates an [Account] with the given display name and current timestamps.
func NewAccount(name string) *Account {
	now := time.Now().UTC()
	return &Account{name: strings.TrimSpace(name), createdAt: now, updatedAt: now}
}

func (a *Account) ID() string           { return a.id }
func (a *Account) Sequence() int        { return a.sequence }
func (a *Account) Name() string         { return a.name }
func (a *Account) CreatedAt() time.Time { return a.createdAt }
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }

func (a *Account) SetID(id string)          { a.id = id }
func (a *Account) SetSequence(seq int)      { a.sequence = seq }
func (a *Account) SetCreatedAt(t time.Time) { a.createdAt = t }
func (a *Account) SetUpdatedAt(t time.Time) { a.updatedAt = t }

// Validate checks that the account has an ID and a usable name.
func (a *Account) Validate() error {
	if a.id == "" {
		return fmt.Errorf("%w: account id is required", shared.ErrInvalidInput)
	}
	if a.name == "" {
		return fmt.Errorf("%w: account name is required", shared.ErrInvalidInput)
	}
	if utf8.RuneCountInString(a.name) > MaxAccountNameLength {
		return fmt.Errorf("%w: account name exceeds %d characters", shared.ErrInvalidInput, MaxAccountNameLength)
	}
	return nil
}

func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}{a.id, a.name, a.createdAt, a.updatedAt})
}
