package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
)

type gradingRepository struct {
	db *boundaryTable
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db.boundary}
}

func (repo *gradingRepository) CreateBoundary(_ context.Context, b grading.Boundary, _ ...core.DBExecutor) (grading.Boundary, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	repo.db.rows = append(repo.db.rows, b)
	return b, nil
}

func (repo *gradingRepository) QueryBoundaries(_ context.Context, academicYear string, _ ...core.DBExecutor) (grading.Table, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	table := make(grading.Table, 0)
	for _, b := range repo.db.rows {
		if b.AcademicYear == academicYear {
			table = append(table, b)
		}
	}
	return table, nil
}
