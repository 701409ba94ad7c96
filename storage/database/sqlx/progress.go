package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
)

const progressColumns = "student_id, activity_id, score, completed, attempts, updated_at"

type progressRepository struct {
	db core.DB
}

var _ curriculum.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db core.DB) curriculum.Repository {
	return &progressRepository{db: db}
}

// UpsertProgress keeps the best score; completion is sticky.
func (repo *progressRepository) UpsertProgress(ctx context.Context, p curriculum.Progress) (curriculum.Progress, error) {
	q, args, err := repo.db.BindNamed(
		"INSERT INTO progress ("+progressColumns+") "+
			"VALUES (:student_id, :activity_id, :score, :completed, :attempts, :updated_at) "+
			"ON CONFLICT (student_id, activity_id) DO UPDATE SET "+
			"score = GREATEST(progress.score, EXCLUDED.score), "+
			"completed = progress.completed OR EXCLUDED.completed, "+
			"attempts = progress.attempts + EXCLUDED.attempts, "+
			"updated_at = EXCLUDED.updated_at "+
			"RETURNING "+progressColumns, p)
	if err != nil {
		return curriculum.Progress{}, pkgerrors.Wrap(err, "binding progress")
	}
	var saved curriculum.Progress
	if err = repo.db.GetContext(ctx, &saved, q, args...); err != nil {
		return curriculum.Progress{}, wrapErr(err, "upserting progress")
	}
	return saved, nil
}

func (repo *progressRepository) QueryProgress(ctx context.Context, studentIDs ...string) ([]curriculum.Progress, error) {
	progress := make([]curriculum.Progress, 0)
	if len(studentIDs) == 0 {
		return progress, nil
	}
	q, args, err := sqlx.In(
		"SELECT "+progressColumns+" FROM progress WHERE student_id IN (?) ORDER BY student_id, activity_id", studentIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building progress query")
	}
	if err = repo.db.SelectContext(ctx, &progress, repo.db.Rebind(q), args...); err != nil {
		return nil, wrapErr(err, "querying progress")
	}
	return progress, nil
}
