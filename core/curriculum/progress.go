package curriculum

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

// Progress is a student's result on one activity.
type Progress struct {
	StudentID  string    `json:"student_id" db:"student_id"` // school.Student.ID
	ActivityID string    `json:"activity_id" db:"activity_id"`
	Score      int       `json:"score" db:"score"`
	Completed  bool      `json:"completed" db:"completed"`
	Attempts   int       `json:"attempts" db:"attempts"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewProgress is a result reported by an activity.
type NewProgress struct {
	StudentID  string `json:"student_id" validate:"required"`
	ActivityID string `json:"activity_id" validate:"required"`
	Score      int    `json:"score" validate:"min=0,max=100"`
	Completed  bool   `json:"completed"`
}

func (np *NewProgress) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.ActivityID = core.CleanString(np.ActivityID, true /* lower */)
	return validate.Struct(np)
}

type (
	ModuleStats struct {
		ModuleID   string `json:"module_id"`
		Name       string `json:"name"`
		Total      int    `json:"total"`     // students
		Completed  int    `json:"completed"` // students who completed every activity of the module
		Percentage int    `json:"percentage"`
	}

	StudentStats struct {
		ID           string     `json:"id"`
		StudentID    string     `json:"student_id"`
		Name         string     `json:"name"`
		Class        string     `json:"class"`
		Section      string     `json:"section"`
		TeacherID    string     `json:"teacher_id"`
		Completed    int        `json:"completed"` // activities
		Total        int        `json:"total"`
		Percentage   int        `json:"percentage"`
		AverageScore float64    `json:"average_score"`
		Progress     []Progress `json:"progress"`
	}

	TeacherStats struct {
		TeacherID  string `json:"teacher_id"`
		Students   int    `json:"students"`
		Percentage int    `json:"percentage"` // average of the students' percentages
	}

	Report struct {
		Modules     []ModuleStats  `json:"modules"`
		Students    []StudentStats `json:"students"`
		Teachers    []TeacherStats `json:"teachers,omitempty"`
		GeneratedAt time.Time      `json:"generated_at"`
	}
)

// Percentage rounds completed/total to the closest integer percentage; 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// buildReport aggregates the progress of students over the catalog.
func buildReport(cat *Catalog, students []school.Student, progress []Progress, byTeacher bool) Report {
	byStudent := make(map[string][]Progress, len(students))
	for _, p := range progress {
		byStudent[p.StudentID] = append(byStudent[p.StudentID], p)
	}

	mods := cat.Modules()
	report := Report{
		Modules:     make([]ModuleStats, len(mods)),
		Students:    make([]StudentStats, 0, len(students)),
		GeneratedAt: NowFunc().UTC(),
	}
	for i, mod := range mods {
		report.Modules[i] = ModuleStats{ModuleID: mod.ID, Name: mod.Name, Total: len(students)}
	}

	total := cat.ActivityCount()
	teachers := make(map[string]*TeacherStats)
	var teacherOrder []string

	for _, s := range students {
		completed := make(map[string]bool)
		var scoreSum int
		sp := byStudent[s.ID]
		for _, p := range sp {
			if p.Completed {
				completed[p.ActivityID] = true
			}
			scoreSum += p.Score
		}

		st := StudentStats{
			ID:         s.ID,
			StudentID:  s.StudentID,
			Name:       s.Name,
			Class:      s.Class,
			Section:    s.Section,
			TeacherID:  s.TeacherID,
			Completed:  len(completed),
			Total:      total,
			Percentage: Percentage(len(completed), total),
			Progress:   sp,
		}
		if st.Progress == nil {
			st.Progress = []Progress{}
		}
		if len(sp) > 0 {
			st.AverageScore = math.Round(float64(scoreSum)/float64(len(sp))*100) / 100
		}
		report.Students = append(report.Students, st)

		for i, mod := range mods {
			done := len(mod.Activities) > 0
			for _, act := range mod.Activities {
				if !completed[act.ID] {
					done = false
					break
				}
			}
			if done {
				report.Modules[i].Completed++
			}
		}

		if byTeacher {
			ts, ok := teachers[s.TeacherID]
			if !ok {
				ts = &TeacherStats{TeacherID: s.TeacherID}
				teachers[s.TeacherID] = ts
				teacherOrder = append(teacherOrder, s.TeacherID)
			}
			ts.Students++
			ts.Percentage += st.Percentage // summed, averaged below
		}
	}

	for i := range report.Modules {
		report.Modules[i].Percentage = Percentage(report.Modules[i].Completed, report.Modules[i].Total)
	}
	if byTeacher {
		report.Teachers = make([]TeacherStats, 0, len(teacherOrder))
		for _, id := range teacherOrder {
			ts := *teachers[id]
			ts.Percentage = int(math.Round(float64(ts.Percentage) / float64(ts.Students)))
			report.Teachers = append(report.Teachers, ts)
		}
	}
	return report
}
