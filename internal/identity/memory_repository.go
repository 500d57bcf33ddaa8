package identity

import (
	"context"
	"sync"

	"github.com/karobar-pk/karobar/internal/access"
	"github.com/karobar-pk/karobar/internal/otp"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory identity store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Role == user.Role && (existing.Email == user.Email || existing.Username == user.Username) {
			return ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, role Role, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Role == role && user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return r.update(id, func(u *User) { u.PasswordHash = hash })
}

func (r *memoryRepository) SaveOTP(_ context.Context, id string, rec otp.Record) error {
	return r.update(id, func(u *User) { u.OTP = rec })
}

func (r *memoryRepository) ClearOTP(_ context.Context, id string) error {
	return r.update(id, func(u *User) { u.OTP = otp.Record{} })
}

func (r *memoryRepository) UpdateTrial(_ context.Context, id string, state access.TrialState) error {
	return r.update(id, func(u *User) { u.Trial = state })
}

func (r *memoryRepository) update(id string, mutate func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	mutate(&user)
	r.users[id] = user
	return nil
}
