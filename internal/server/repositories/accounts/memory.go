package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// MemoryRepository keeps accounts in a map. Used for local runs and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.Account
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]models.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return models.Account{}, common.ErrorNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return models.Account{}, common.ErrorNotFound
	}
	return a, nil
}

func (r *MemoryRepository) FindByVerificationToken(ctx context.Context, code string, now time.Time) (models.Account, error) {
	return r.findFirst(func(a models.Account) bool { return a.VerificationPending(code, now) })
}

func (r *MemoryRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error) {
	return r.findFirst(func(a models.Account) bool { return a.ResetPending(token, now) })
}

func (r *MemoryRepository) findFirst(match func(models.Account) bool) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, common.ErrorNotFound
}

func (r *MemoryRepository) Create(ctx context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return common.ErrorAlreadyExists
	}
	if _, taken := r.byID[account.ID]; taken {
		return common.ErrorAlreadyExists
	}
	r.byID[account.ID] = account
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryRepository) TouchLogin(ctx context.Context, id string, now time.Time) error {
	_, err := r.update(id, func(a models.Account) (models.Account, bool) {
		return a.LoggedIn(now), true
	})
	return err
}

func (r *MemoryRepository) MarkVerified(ctx context.Context, id, code string, now time.Time) (models.Account, error) {
	return r.update(id, func(a models.Account) (models.Account, bool) {
		if !a.VerificationPending(code, now) {
			return a, false
		}
		return a.Verified(now), true
	})
}

func (r *MemoryRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	_, err := r.update(id, func(a models.Account) (models.Account, bool) {
		return a.WithResetToken(token, now, expiresAt.Sub(now)), true
	})
	return err
}

func (r *MemoryRepository) ConsumeReset(ctx context.Context, id, token, passwordHash string, now time.Time) error {
	_, err := r.update(id, func(a models.Account) (models.Account, bool) {
		if !a.ResetPending(token, now) {
			return a, false
		}
		return a.WithPassword(passwordHash, now), true
	})
	return err
}

// update applies change to the current record of id under the write lock.
// change reports false when its precondition does not hold.
func (r *MemoryRepository) update(id string, change func(models.Account) (models.Account, bool)) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return models.Account{}, common.ErrorNotFound
	}
	a, ok = change(a)
	if !ok {
		return models.Account{}, common.ErrorNotFound
	}
	r.byID[id] = a
	return a, nil
}

// Len returns the number of stored accounts.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
