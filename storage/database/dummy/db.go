package dummydb

import (
	"errors"
	"sync"

	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/school"
)

// ErrDuplicate mimics a unique constraint violation.
var ErrDuplicate = errors.New("duplicate key value violates unique constraint")

type (
	// DB is an in-memory database, for tests and local runs.
	DB struct {
		school   *schoolTables
		progress *progressTable
	}

	schoolTables struct {
		sync.RWMutex
		principals map[string]*school.Principal
		schools    map[string]*school.School
		teachers   map[string]*school.Teacher
		students   map[string]*school.Student
		edits      []school.EditHistory
	}

	progressKey struct {
		studentID, activityID string
	}

	progressTable struct {
		sync.RWMutex
		table map[progressKey]*curriculum.Progress
	}
)

func Open() *DB {
	return &DB{
		school: &schoolTables{
			principals: make(map[string]*school.Principal),
			schools:    make(map[string]*school.School),
			teachers:   make(map[string]*school.Teacher),
			students:   make(map[string]*school.Student),
		},
		progress: &progressTable{table: make(map[progressKey]*curriculum.Progress)},
	}
}
