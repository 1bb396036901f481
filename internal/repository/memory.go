package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"
)

// MemoryRepository keeps every table in process memory. It follows the same
// conditional-update rules as PostgresRepository and backs the local gateway.
type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[uint]models.User
	slices    map[uint]models.PizzaSlice
	purchases map[uint]models.PurchaseRecord

	nextUserID     uint
	nextSliceID    uint
	nextPurchaseID uint

	now func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:     make(map[uint]models.User),
		slices:    make(map[uint]models.PizzaSlice),
		purchases: make(map[uint]models.PurchaseRecord),
		now:       time.Now,
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextUserID++
	now := r.now()
	user.ID = r.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return apperr.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryRepository) DebitCoins(_ context.Context, id uint, amount int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if amount < 0 {
		return nil, apperr.ErrInvalidInput
	}
	user, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	if user.Coins < amount {
		return nil, apperr.ErrInsufficientCoins
	}
	user.Coins -= amount
	user.UpdatedAt = r.now()
	r.users[id] = user
	return &user, nil
}

func (r *MemoryRepository) IncrementEaten(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	user.NumberOfPizzaEaten++
	user.UpdatedAt = r.now()
	r.users[id] = user
	return &user, nil
}

func (r *MemoryRepository) ListSlices(_ context.Context) ([]models.PizzaSlice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slices := make([]models.PizzaSlice, 0, len(r.slices))
	for _, slice := range r.slices {
		slices = append(slices, slice)
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Price != slices[j].Price {
			return slices[i].Price < slices[j].Price
		}
		return slices[i].Name < slices[j].Name
	})
	return slices, nil
}

func (r *MemoryRepository) GetSlicesByID(_ context.Context, ids []uint) ([]models.PizzaSlice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slices := make([]models.PizzaSlice, 0, len(ids))
	for _, id := range ids {
		if slice, ok := r.slices[id]; ok {
			slices = append(slices, slice)
		}
	}
	return slices, nil
}

// UpsertSlices matches existing slices by name, like the Postgres ON CONFLICT
func (r *MemoryRepository) UpsertSlices(_ context.Context, slices []models.PizzaSlice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string]uint, len(r.slices))
	for id, slice := range r.slices {
		byName[slice.Name] = id
	}
	for i := range slices {
		if id, ok := byName[slices[i].Name]; ok {
			slices[i].ID = id
		} else {
			r.nextSliceID++
			slices[i].ID = r.nextSliceID
			byName[slices[i].Name] = slices[i].ID
		}
		r.slices[slices[i].ID] = slices[i]
	}
	return nil
}

func (r *MemoryRepository) InsertPurchases(_ context.Context, records []models.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range records {
		r.nextPurchaseID++
		records[i].ID = r.nextPurchaseID
		r.purchases[records[i].ID] = records[i]
	}
	return nil
}

func (r *MemoryRepository) ListPurchases(_ context.Context, userID uint) ([]models.PurchaseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]models.PurchaseRecord, 0)
	for _, record := range r.purchases {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].PurchasedAt.Equal(records[j].PurchasedAt) {
			return records[i].PurchasedAt.After(records[j].PurchasedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (r *MemoryRepository) GetPurchase(_ context.Context, id uint) (*models.PurchaseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.purchases[id]
	if !ok {
		return nil, apperr.ErrPurchaseNotFound
	}
	return &record, nil
}

func (r *MemoryRepository) MarkPurchaseEaten(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.purchases[id]
	if !ok {
		return apperr.ErrPurchaseNotFound
	}
	if record.EatenAt != nil {
		return apperr.ErrAlreadyEaten
	}
	record.EatenAt = &at
	r.purchases[id] = record
	return nil
}

func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}
