package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

// Repository reads component and build definitions. The catalog is owned elsewhere; nothing here writes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ComponentsByIDs loads components keyed by id. Unknown ids are simply absent.
func (r *Repository) ComponentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Component, error) {
	out := make(map[uuid.UUID]models.Component, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Component
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load components")
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// FindBuild loads a build with its parts and their components.
func (r *Repository) FindBuild(ctx context.Context, id uuid.UUID) (*models.Build, error) {
	var build models.Build
	err := r.db.WithContext(ctx).
		Preload("Parts.Component").
		Where("id = ?", id).
		First(&build).Error
	if pkgdb.IsNotFound(err) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "build %s not found", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load build")
	}
	return &build, nil
}
