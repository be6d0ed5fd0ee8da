package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
)

func Test_trapForeignKeyErr(t *testing.T) {
	fkErr := func(constraint string) error {
		return errors.Wrap(&pq.Error{Code: foreignKeyViolation, Constraint: constraint}, "inserting course")
	}
	uniqueErr := &pq.Error{Code: uniqueViolation, Constraint: "course_subject_id_fkey"}
	otherErr := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing subject", fkErr("course_subject_id_fkey"), course.ErrSubjectNotFound},
		{"missing teacher", fkErr("course_teacher_id_fkey"), account.ErrProfileNotFound},
		{"unknown constraint", fkErr("course_other_fkey"), nil},
		{"not a foreign key violation", uniqueErr, uniqueErr},
		{"not a pq error", otherErr, otherErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trapForeignKeyErr(tt.err, courseFKErrs)
			if tt.want == nil {
				assert.Equal(t, tt.err, got, "unmapped errors are returned as is")
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_trapForeignKeyErr_enrollment(t *testing.T) {
	studentErr := &pq.Error{Code: foreignKeyViolation, Constraint: "enrollment_student_id_fkey"}
	courseErr := &pq.Error{Code: foreignKeyViolation, Constraint: "enrollment_course_id_fkey"}

	assert.Equal(t, course.ErrStudentNotFound, trapForeignKeyErr(studentErr, enrollmentFKErrs))
	assert.Equal(t, course.ErrNotFound, trapForeignKeyErr(courseErr, enrollmentFKErrs))
}
