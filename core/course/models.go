package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

type Subject struct {
	ID          int         `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description null.String `json:"description" db:"description"`
}

type Course struct {
	ID        int    `json:"id" db:"id"`
	SubjectID int    `json:"subject_id" db:"subject_id"`
	TeacherID int    `json:"teacher_id" db:"teacher_id"`
	Period    string `json:"period" db:"period"`
}

// Detail is a Course joined with its subject and teacher names.
type Detail struct {
	Course
	SubjectName      string      `json:"subject_name" db:"subject_name"`
	TeacherFirstName null.String `json:"teacher_first_name" db:"teacher_first_name"`
	TeacherLastName  null.String `json:"teacher_last_name" db:"teacher_last_name"`
}

type Enrollment struct {
	CourseID   int       `json:"course_id" db:"course_id"`
	StudentID  int       `json:"student_id" db:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"` // UTC
}

// Roster lists the students of a course whose profile is complete.
// Alert is set when some enrolled students were left out.
type Roster struct {
	Students []account.Student `json:"students"`
	Alert    null.String       `json:"alert"`
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,notblank,max=150"`
	Description string `json:"description"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

type NewCourse struct {
	SubjectID int    `json:"subject_id" validate:"required"`
	TeacherID int    `json:"teacher_id" validate:"required"`
	Period    string `json:"period" validate:"required,notblank,max=50"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Period = core.CleanString(nc.Period)
	return validate.Struct(nc)
}
