package repository

import (
	"context"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
)

type TableRepository struct {
	base
}

func (r *TableRepository) List(ctx context.Context) ([]models.Table, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var tables []models.Table
	if err := db.Order("table_number ASC").Find(&tables).Error; err != nil {
		return nil, wrap("list tables", err)
	}
	return tables, nil
}

func (r *TableRepository) FindByNumber(ctx context.Context, number int) (*models.Table, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var table models.Table
	if err := db.Where("table_number = ?", number).First(&table).Error; err != nil {
		if notFound(err) {
			return nil, apperrors.NotFound("find table", "table %d not found", number)
		}
		return nil, wrap("find table", err)
	}
	return &table, nil
}

func (r *TableRepository) Find(ctx context.Context, id uint) (*models.Table, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var table models.Table
	if err := db.First(&table, id).Error; err != nil {
		if notFound(err) {
			return nil, apperrors.NotFound("find table", "table id %d not found", id)
		}
		return nil, wrap("find table", err)
	}
	return &table, nil
}

// SetStatus updates the occupancy of a table.
func (r *TableRepository) SetStatus(ctx context.Context, id uint, status string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Table{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return wrap("update table status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("update table status", "table id %d not found", id)
	}
	return nil
}
