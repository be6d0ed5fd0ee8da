package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/storage/database"
)

const courseDetailQuery = `SELECT c.id, c.subject_id, c.teacher_id, c.period,
		s.name AS subject_name,
		t.first_name AS teacher_first_name,
		t.last_name AS teacher_last_name
	FROM course c
	JOIN subject s ON s.id = c.subject_id
	JOIN teacher t ON t.id = c.teacher_id`

// course foreign keys, as named by postgres
var courseFKErrs = map[string]error{
	"course_subject_id_fkey": course.ErrSubjectNotFound,
	"course_teacher_id_fkey": account.ErrProfileNotFound,
}

var enrollmentFKErrs = map[string]error{
	"enrollment_course_id_fkey":  course.ErrNotFound,
	"enrollment_student_id_fkey": course.ErrStudentNotFound,
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *database.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func (repo *courseRepository) CreateSubject(ctx context.Context, subj course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	q := "INSERT INTO subject (name, description) VALUES ($1, $2) RETURNING id"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &subj.ID, q, subj.Name, subj.Description); err != nil {
		return course.Subject{}, trapConstraintErr(err, course.ErrSubjectExists, nil)
	}
	return subj, nil
}

func (repo *courseRepository) GetSubject(ctx context.Context, id int, exec ...core.DBExecutor) (course.Subject, error) {
	var subj course.Subject
	q := "SELECT id, name, description FROM subject WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &subj, q, id); err != nil {
		return course.Subject{}, trapNoRowsErr(err, course.ErrSubjectNotFound)
	}
	return subj, nil
}

func (repo *courseRepository) ListSubjects(ctx context.Context, exec ...core.DBExecutor) ([]course.Subject, error) {
	subjects := make([]course.Subject, 0)
	q := "SELECT id, name, description FROM subject ORDER BY name"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &subjects, q); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := "INSERT INTO course (subject_id, teacher_id, period) VALUES ($1, $2, $3) RETURNING id"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &c.ID, q, c.SubjectID, c.TeacherID, c.Period); err != nil {
		return course.Course{}, trapForeignKeyErr(err, courseFKErrs)
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	var c course.Course
	q := "SELECT id, subject_id, teacher_id, period FROM course WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &c, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return c, nil
}

func (repo *courseRepository) selectDetails(ctx context.Context, exec []core.DBExecutor, q string, args ...interface{}) ([]course.Detail, error) {
	details := make([]course.Detail, 0)
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &details, q, args...); err != nil {
		return nil, err
	}
	return details, nil
}

func (repo *courseRepository) ListCourses(ctx context.Context, exec ...core.DBExecutor) ([]course.Detail, error) {
	return repo.selectDetails(ctx, exec, courseDetailQuery+" ORDER BY c.period, s.name, c.id")
}

func (repo *courseRepository) TeacherCourses(ctx context.Context, teacherID int, exec ...core.DBExecutor) ([]course.Detail, error) {
	q := courseDetailQuery + " WHERE c.teacher_id = $1 ORDER BY c.period, s.name, c.id"
	return repo.selectDetails(ctx, exec, q, teacherID)
}

func (repo *courseRepository) StudentCourses(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]course.Detail, error) {
	q := courseDetailQuery + `
	JOIN enrollment e ON e.course_id = c.id
	WHERE e.student_id = $1
	ORDER BY c.period, s.name, c.id`
	return repo.selectDetails(ctx, exec, q, studentID)
}

func (repo *courseRepository) Enroll(ctx context.Context, courseID, studentID int, exec ...core.DBExecutor) (course.Enrollment, error) {
	var enr course.Enrollment
	q := `INSERT INTO enrollment (course_id, student_id) VALUES ($1, $2)
		RETURNING course_id, student_id, enrolled_at`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &enr, q, courseID, studentID); err != nil {
		if hasPQCode(err, uniqueViolation) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, trapForeignKeyErr(err, enrollmentFKErrs)
	}
	return enr, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, courseID, studentID int, exec ...core.DBExecutor) (bool, error) {
	var enrolled bool
	q := "SELECT EXISTS (SELECT 1 FROM enrollment WHERE course_id = $1 AND student_id = $2)"
	err := sqlx.GetContext(ctx, repo.getExec(exec), &enrolled, q, courseID, studentID)
	return enrolled, err
}

func (repo *courseRepository) EnrolledStudents(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]account.Student, error) {
	students := make([]account.Student, 0)
	q := `SELECT st.id, st.account_id, st.first_name, st.last_name, st.document, st.email
		FROM student st
		JOIN enrollment e ON e.student_id = st.id
		WHERE e.course_id = $1
		ORDER BY st.last_name, st.first_name, st.id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &students, q, courseID); err != nil {
		return nil, err
	}
	return students, nil
}
