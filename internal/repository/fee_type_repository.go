package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
)

// FeeTypeRepository provides read access to institution fee templates.
// Templates are managed by the campus back office, this service only
// consumes them.
type FeeTypeRepository struct {
	db *sqlx.DB
}

// NewFeeTypeRepository constructs the repository.
func NewFeeTypeRepository(db *sqlx.DB) *FeeTypeRepository {
	return &FeeTypeRepository{db: db}
}

// List returns all fee templates ordered by name.
func (r *FeeTypeRepository) List(ctx context.Context) ([]models.FeeType, error) {
	const query = `SELECT id, name, description, amount, frequency, created_at, updated_at FROM fee_types ORDER BY name`
	var feeTypes []models.FeeType
	if err := r.db.SelectContext(ctx, &feeTypes, query); err != nil {
		return nil, fmt.Errorf("list fee types: %w", err)
	}
	return feeTypes, nil
}

// FindByID returns a fee template by its ID.
func (r *FeeTypeRepository) FindByID(ctx context.Context, id string) (*models.FeeType, error) {
	const query = `SELECT id, name, description, amount, frequency, created_at, updated_at FROM fee_types WHERE id = $1`
	var feeType models.FeeType
	if err := r.db.GetContext(ctx, &feeType, query, id); err != nil {
		return nil, err
	}
	return &feeType, nil
}
