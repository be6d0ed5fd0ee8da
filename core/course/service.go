package course

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

var (
	// errors
	ErrNotFound         = core.NewError(core.KindNotFound, "course not found")
	ErrSubjectNotFound  = core.NewError(core.KindNotFound, "subject not found")
	ErrSubjectExists    = core.NewError(core.KindConflict, "a subject with this name already exists")
	ErrStudentNotFound  = core.NewError(core.KindNotFound, "student not found")
	ErrAlreadyEnrolled  = core.NewError(core.KindConflict, "student is already enrolled in this course")
	ErrNotCourseTeacher = core.NewError(core.KindForbidden, "course is assigned to another teacher")
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id int, exec ...core.DBExecutor) (Subject, error)
		ListSubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)

		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (Course, error)
		ListCourses(ctx context.Context, exec ...core.DBExecutor) ([]Detail, error)
		TeacherCourses(ctx context.Context, teacherID int, exec ...core.DBExecutor) ([]Detail, error)
		StudentCourses(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]Detail, error)

		Enroll(ctx context.Context, courseID, studentID int, exec ...core.DBExecutor) (Enrollment, error)
		IsEnrolled(ctx context.Context, courseID, studentID int, exec ...core.DBExecutor) (bool, error)
		EnrolledStudents(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]account.Student, error)
	}

	// ProfileFinder looks up teacher and student profiles. account.Repository satisfies it.
	ProfileFinder interface {
		GetTeacher(ctx context.Context, id int, exec ...core.DBExecutor) (account.Teacher, error)
		GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (account.Student, error)
		ListStudents(ctx context.Context, exec ...core.DBExecutor) ([]account.Student, error)
	}

	Service struct {
		repo     Repository
		profiles ProfileFinder
	}
)

func NewService(repo Repository, profiles ProfileFinder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(profiles, "profiles"),
	).CheckAndPanic()

	return &Service{repo: repo, profiles: profiles}
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	return svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Description: null.NewString(ns.Description, ns.Description != ""),
	})
}

func (svc *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.ListSubjects(ctx)
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetSubject(ctx, nc.SubjectID); err != nil {
		return Course{}, courseRefErr(err, "fetching subject")
	}
	if _, err := svc.profiles.GetTeacher(ctx, nc.TeacherID); err != nil {
		return Course{}, courseRefErr(err, "fetching teacher")
	}
	c, err := svc.repo.CreateCourse(ctx, Course{
		SubjectID: nc.SubjectID,
		TeacherID: nc.TeacherID,
		Period:    nc.Period,
	})
	if err != nil {
		// the subject or teacher may have been deleted since they were checked
		return Course{}, courseRefErr(err, "creating course")
	}
	return c, nil
}

// courseRefErr reports a missing subject or teacher against the field that referenced it.
func courseRefErr(err error, msg string) error {
	switch errors.Cause(err) {
	case ErrSubjectNotFound:
		return core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: ErrSubjectNotFound.Error()})
	case account.ErrProfileNotFound:
		return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: "teacher not found"})
	}
	return errors.Wrap(err, msg)
}

func (svc *Service) ListCourses(ctx context.Context) ([]Detail, error) {
	return svc.repo.ListCourses(ctx)
}

func (svc *Service) Course(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// TeacherCourse returns the course only if it is assigned to the teacher.
func (svc *Service) TeacherCourse(ctx context.Context, teacherID, courseID int) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if c.TeacherID != teacherID {
		return Course{}, ErrNotCourseTeacher
	}
	return c, nil
}

func (svc *Service) TeacherCourses(ctx context.Context, teacherID int) ([]Detail, error) {
	return svc.repo.TeacherCourses(ctx, teacherID)
}

func (svc *Service) StudentCourses(ctx context.Context, studentID int) ([]Detail, error) {
	return svc.repo.StudentCourses(ctx, studentID)
}

func (svc *Service) Enroll(ctx context.Context, courseID, studentID int) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	if _, err := svc.profiles.GetStudent(ctx, studentID); err != nil {
		if errors.Cause(err) == account.ErrProfileNotFound {
			return Enrollment{}, ErrStudentNotFound
		}
		return Enrollment{}, errors.Wrap(err, "fetching student")
	}
	return svc.repo.Enroll(ctx, courseID, studentID)
}

func (svc *Service) IsEnrolled(ctx context.Context, courseID, studentID int) (bool, error) {
	return svc.repo.IsEnrolled(ctx, courseID, studentID)
}

// Roster returns the enrolled students with a complete profile,
// along with an alert counting the ones left out.
func (svc *Service) Roster(ctx context.Context, courseID int) (Roster, error) {
	students, err := svc.repo.EnrolledStudents(ctx, courseID)
	if err != nil {
		return Roster{}, errors.Wrap(err, "fetching enrolled students")
	}

	roster := Roster{Students: make([]account.Student, 0, len(students))}
	for _, s := range students {
		if s.IsComplete() {
			roster.Students = append(roster.Students, s)
		}
	}
	if missing := len(students) - len(roster.Students); missing > 0 {
		roster.Alert = null.StringFrom(fmt.Sprintf("%d student(s) without a complete profile", missing))
	}
	return roster, nil
}

// AvailableStudents lists every student profile, complete or not.
func (svc *Service) AvailableStudents(ctx context.Context) ([]account.Student, error) {
	return svc.profiles.ListStudents(ctx)
}
