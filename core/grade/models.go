package grade

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Block is an evaluation block (e.g. "First term") grades are recorded against.
type Block struct {
	ID      int      `json:"id" db:"id"`
	Name    string   `json:"name" db:"name"`
	Weights *Weights `json:"weights" db:"-"` // nil until configured
}

type Grade struct {
	ID        int `json:"id" db:"id"`
	StudentID int `json:"student_id" db:"student_id"`
	CourseID  int `json:"course_id" db:"course_id"`
	BlockID   int `json:"block_id" db:"block_id"`
	Scores
	WeightedAverage float64   `json:"weighted_average" db:"weighted_average"`
	Verdict         Verdict   `json:"verdict" db:"-"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// BlockGrade is a Grade along with the name of its block.
type BlockGrade struct {
	Grade
	BlockName string `json:"block_name" db:"block_name"`
}

// StudentGrade is a Grade along with where it was earned.
type StudentGrade struct {
	BlockGrade
	SubjectName string `json:"subject_name" db:"subject_name"`
	Period      string `json:"period" db:"period"`
}

type FinalAverage struct {
	StudentID int     `json:"student_id"`
	CourseID  int     `json:"course_id"`
	Blocks    int     `json:"blocks"`
	Average   float64 `json:"average"`
	Verdict   Verdict `json:"verdict"`
}

type TranscriptEntry struct {
	CourseID     int     `json:"course_id"`
	SubjectName  string  `json:"subject_name"`
	Period       string  `json:"period"`
	FinalAverage float64 `json:"final_average"`
	Verdict      Verdict `json:"verdict"`
}

// ImportResult is the outcome of one spreadsheet row.
type ImportResult struct {
	Row   int    `json:"row"`
	Grade *Grade `json:"grade,omitempty"`
	Error string `json:"error,omitempty"`
}

type NewBlock struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (nb *NewBlock) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	return validate.Struct(nb)
}

// NewGrade contains the raw scores of a grade. Its weighted average is always computed.
type NewGrade struct {
	StudentID int      `json:"student_id" validate:"required"`
	CourseID  int      `json:"course_id" validate:"required"`
	BlockID   int      `json:"block_id" validate:"required"`
	Quiz      *float64 `json:"quiz" validate:"required,min=0,max=5,decimals2"`
	Midterm   *float64 `json:"midterm" validate:"required,min=0,max=5,decimals2"`
	Project   *float64 `json:"project" validate:"required,min=0,max=5,decimals2"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	return validate.Struct(ng)
}

func (ng NewGrade) scores() Scores {
	var s Scores
	if ng.Quiz != nil {
		s.Quiz = *ng.Quiz
	}
	if ng.Midterm != nil {
		s.Midterm = *ng.Midterm
	}
	if ng.Project != nil {
		s.Project = *ng.Project
	}
	return s
}
