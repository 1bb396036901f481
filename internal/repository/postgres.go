package repository

import (
	"context"
	"time"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresRepository handles all PostgreSQL operations
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// CreateUser inserts a user and fills in its id
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(err, "repo: CreateUser")
	}
	return nil
}

// ListUsers retrieves all users ordered by name
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "repo: ListUsers")
	}
	return users, nil
}

// GetUser retrieves a user by id
func (r *PostgresRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "repo: GetUser")
	}
	return &user, nil
}

// DeleteUser removes a user from the database
func (r *PostgresRepository) DeleteUser(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "repo: DeleteUser")
	}
	if res.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// DebitCoins subtracts amount from the balance only when the balance covers
// it, so two concurrent purchases can never drive coins below zero.
func (r *PostgresRepository) DebitCoins(ctx context.Context, id uint, amount int) (*models.User, error) {
	if amount < 0 {
		return nil, apperr.ErrInvalidInput
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND coins >= ?", id, amount).
		Update("coins", gorm.Expr("coins - ?", amount))
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "repo: DebitCoins")
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetUser(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInsufficientCoins
	}
	return r.GetUser(ctx, id)
}

// IncrementEaten bumps the eaten counter by one
func (r *PostgresRepository) IncrementEaten(ctx context.Context, id uint) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("number_of_pizza_eaten", gorm.Expr("number_of_pizza_eaten + ?", 1))
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "repo: IncrementEaten")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrUserNotFound
	}
	return r.GetUser(ctx, id)
}

// ListSlices retrieves the catalog ordered by price then name
func (r *PostgresRepository) ListSlices(ctx context.Context) ([]models.PizzaSlice, error) {
	var slices []models.PizzaSlice
	if err := r.db.WithContext(ctx).Order("price ASC").Order("name ASC").Find(&slices).Error; err != nil {
		return nil, errors.Wrap(err, "repo: ListSlices")
	}
	return slices, nil
}

// GetSlicesByID retrieves the slices with the given ids; unknown ids are skipped
func (r *PostgresRepository) GetSlicesByID(ctx context.Context, ids []uint) ([]models.PizzaSlice, error) {
	if len(ids) == 0 {
		return []models.PizzaSlice{}, nil
	}
	var slices []models.PizzaSlice
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&slices).Error; err != nil {
		return nil, errors.Wrap(err, "repo: GetSlicesByID")
	}
	return slices, nil
}

// UpsertSlices creates or updates catalog slices keyed by name
// Uses ON CONFLICT to handle upserts efficiently
func (r *PostgresRepository) UpsertSlices(ctx context.Context, slices []models.PizzaSlice) error {
	if len(slices) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "description"}),
	}).Create(&slices).Error
	return errors.Wrap(err, "repo: UpsertSlices")
}

// InsertPurchases inserts purchase records in one statement and fills their ids
func (r *PostgresRepository) InsertPurchases(ctx context.Context, records []models.PurchaseRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		return errors.Wrap(err, "repo: InsertPurchases")
	}
	return nil
}

// ListPurchases retrieves a user's records, newest first
func (r *PostgresRepository) ListPurchases(ctx context.Context, userID uint) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "repo: ListPurchases")
	}
	return records, nil
}

// GetPurchase retrieves one purchase record
func (r *PostgresRepository) GetPurchase(ctx context.Context, id uint) (*models.PurchaseRecord, error) {
	var record models.PurchaseRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrPurchaseNotFound
		}
		return nil, errors.Wrap(err, "repo: GetPurchase")
	}
	return &record, nil
}

// MarkPurchaseEaten sets eaten_at only on a record that is not eaten yet
func (r *PostgresRepository) MarkPurchaseEaten(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.PurchaseRecord{}).
		Where("id = ? AND eaten_at IS NULL", id).
		Update("eaten_at", at)
	if res.Error != nil {
		return errors.Wrap(res.Error, "repo: MarkPurchaseEaten")
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetPurchase(ctx, id); err != nil {
			return err
		}
		return apperr.ErrAlreadyEaten
	}
	return nil
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.User{}, &models.PizzaSlice{}, &models.PurchaseRecord{})
}
