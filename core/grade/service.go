package grade

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

var (
	// errors
	ErrBlockNotFound   = core.NewError(core.KindNotFound, "evaluation block not found")
	ErrBlockExists     = core.NewError(core.KindConflict, "an evaluation block with this name already exists")
	ErrNoGrades        = core.NewError(core.KindNotFound, "no grades recorded for this course")
	ErrWeightsTotal    = core.NewError(core.KindValidation, "quiz, midterm and project percentages must add up to 100")
	errNotEnrolledText = "student is not enrolled in this course"
)

type (
	Repository interface {
		CreateBlock(ctx context.Context, b Block, exec ...core.DBExecutor) (Block, error)
		GetBlock(ctx context.Context, id int, exec ...core.DBExecutor) (Block, error)
		ListBlocks(ctx context.Context, exec ...core.DBExecutor) ([]Block, error)
		// SetWeights creates or replaces the weights of a block.
		SetWeights(ctx context.Context, blockID int, w Weights, exec ...core.DBExecutor) error
		// GetWeights returns nil, without error, for a block that has no weights yet.
		GetWeights(ctx context.Context, blockID int, exec ...core.DBExecutor) (*Weights, error)

		// UpsertGrade creates the grade or replaces the scores of the existing one
		// for the same student, course and block.
		UpsertGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		CourseGrades(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) ([]BlockGrade, error)
		StudentGrades(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]StudentGrade, error)
	}

	// CourseFinder checks courses and enrollments. course.Repository satisfies it.
	CourseFinder interface {
		GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error)
		IsEnrolled(ctx context.Context, courseID, studentID int, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		repo     Repository
		courses  CourseFinder
		validate *validator.Validate
	}
)

func NewService(repo Repository, courses CourseFinder, validate *validator.Validate) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()

	return &Service{repo: repo, courses: courses, validate: validate}
}

func (svc *Service) CreateBlock(ctx context.Context, nb NewBlock) (Block, error) {
	return svc.repo.CreateBlock(ctx, Block{Name: nb.Name})
}

func (svc *Service) ListBlocks(ctx context.Context) ([]Block, error) {
	return svc.repo.ListBlocks(ctx)
}

// SetWeights configures the percentages of a block. They must add up to 100.
func (svc *Service) SetWeights(ctx context.Context, blockID int, w Weights) (Block, error) {
	if err := svc.validate.Struct(w); err != nil {
		return Block{}, err
	}
	if math.Abs(w.Total()-100) > 1e-9 {
		return Block{}, ErrWeightsTotal
	}

	b, err := svc.repo.GetBlock(ctx, blockID)
	if err != nil {
		return Block{}, err
	}
	if err = svc.repo.SetWeights(ctx, blockID, w); err != nil {
		return Block{}, errors.Wrap(err, "setting block weights")
	}
	b.Weights = &w
	return b, nil
}

// Record computes the weighted average of ng and saves it,
// replacing any grade previously recorded for the same student, course and block.
func (svc *Service) Record(ctx context.Context, ng NewGrade) (Grade, error) {
	if err := ng.Validate(svc.validate); err != nil {
		return Grade{}, err
	}

	if _, err := svc.courses.GetCourse(ctx, ng.CourseID); err != nil {
		return Grade{}, err
	}
	enrolled, err := svc.courses.IsEnrolled(ctx, ng.CourseID, ng.StudentID)
	if err != nil {
		return Grade{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: errNotEnrolledText})
	}

	if _, err = svc.repo.GetBlock(ctx, ng.BlockID); err != nil {
		return Grade{}, err
	}
	weights, err := svc.repo.GetWeights(ctx, ng.BlockID)
	if err != nil {
		return Grade{}, errors.Wrap(err, "fetching block weights")
	}
	scores := ng.scores()
	avg, err := ComputeBlockAverage(scores, weights)
	if err != nil {
		return Grade{}, err
	}

	g, err := svc.repo.UpsertGrade(ctx, Grade{
		StudentID:       ng.StudentID,
		CourseID:        ng.CourseID,
		BlockID:         ng.BlockID,
		Scores:          scores,
		WeightedAverage: avg,
	})
	if err != nil {
		return Grade{}, errors.Wrap(err, "saving grade")
	}
	g.Verdict = VerdictFor(g.WeightedAverage)
	return g, nil
}

func (svc *Service) CourseGrades(ctx context.Context, studentID, courseID int) ([]BlockGrade, error) {
	grades, err := svc.repo.CourseGrades(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		grades[i].Verdict = VerdictFor(grades[i].WeightedAverage)
	}
	return grades, nil
}

func (svc *Service) StudentGrades(ctx context.Context, studentID int) ([]StudentGrade, error) {
	grades, err := svc.repo.StudentGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		grades[i].Verdict = VerdictFor(grades[i].WeightedAverage)
	}
	return grades, nil
}

// FinalAverage is the mean of the student's block averages in a course.
func (svc *Service) FinalAverage(ctx context.Context, studentID, courseID int) (FinalAverage, error) {
	grades, err := svc.repo.CourseGrades(ctx, studentID, courseID)
	if err != nil {
		return FinalAverage{}, err
	}
	if len(grades) == 0 {
		return FinalAverage{}, ErrNoGrades
	}

	var sum float64
	for _, g := range grades {
		sum += g.WeightedAverage
	}
	avg := core.Round2(sum / float64(len(grades)))
	return FinalAverage{
		StudentID: studentID,
		CourseID:  courseID,
		Blocks:    len(grades),
		Average:   avg,
		Verdict:   VerdictFor(avg),
	}, nil
}

// Transcript returns the final average of every course the student has grades in.
func (svc *Service) Transcript(ctx context.Context, studentID int) ([]TranscriptEntry, error) {
	grades, err := svc.repo.StudentGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}

	type acc struct {
		entry TranscriptEntry
		sum   float64
		count int
	}
	var order []int
	byCourse := make(map[int]*acc)
	for _, g := range grades {
		a, ok := byCourse[g.CourseID]
		if !ok {
			a = &acc{entry: TranscriptEntry{CourseID: g.CourseID, SubjectName: g.SubjectName, Period: g.Period}}
			byCourse[g.CourseID] = a
			order = append(order, g.CourseID)
		}
		a.sum += g.WeightedAverage
		a.count++
	}

	entries := make([]TranscriptEntry, 0, len(order))
	for _, id := range order {
		a := byCourse[id]
		a.entry.FinalAverage = core.Round2(a.sum / float64(a.count))
		a.entry.Verdict = VerdictFor(a.entry.FinalAverage)
		entries = append(entries, a.entry)
	}
	return entries, nil
}
