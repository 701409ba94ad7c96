package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/curriculum"
)

type progressRepository struct {
	db *progressTable
}

var _ curriculum.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) curriculum.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) UpsertProgress(_ context.Context, p curriculum.Progress) (curriculum.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := progressKey{studentID: p.StudentID, activityID: p.ActivityID}
	if prev, ok := repo.db.table[key]; ok {
		if prev.Score > p.Score {
			p.Score = prev.Score
		}
		p.Completed = p.Completed || prev.Completed
		p.Attempts += prev.Attempts
	}
	repo.db.table[key] = &p
	return p, nil
}

func (repo *progressRepository) QueryProgress(_ context.Context, studentIDs ...string) ([]curriculum.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		ids[id] = true
	}
	progress := make([]curriculum.Progress, 0)
	for key, p := range repo.db.table {
		if ids[key.studentID] {
			progress = append(progress, *p)
		}
	}
	sort.Slice(progress, func(i, j int) bool {
		if progress[i].StudentID != progress[j].StudentID {
			return progress[i].StudentID < progress[j].StudentID
		}
		return progress[i].ActivityID < progress[j].ActivityID
	})
	return progress, nil
}
