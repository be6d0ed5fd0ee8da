package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateSubject(_ context.Context, subj course.Subject, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.t.subjects {
		if other.Name == subj.Name {
			return course.Subject{}, course.ErrSubjectExists
		}
	}
	subj.ID = repo.db.t.nextID("subject")
	repo.db.t.subjects[subj.ID] = subj
	return subj, nil
}

func (repo *courseRepository) GetSubject(_ context.Context, id int, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if subj, ok := repo.db.t.subjects[id]; ok {
		return subj, nil
	}
	return course.Subject{}, course.ErrSubjectNotFound
}

func (repo *courseRepository) ListSubjects(_ context.Context, _ ...core.DBExecutor) ([]course.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]course.Subject, 0, len(repo.db.t.subjects))
	for _, subj := range repo.db.t.subjects {
		subjects = append(subjects, subj)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.subjects[c.SubjectID]; !ok {
		return course.Course{}, course.ErrSubjectNotFound
	}
	if _, ok := repo.db.t.teachers[c.TeacherID]; !ok {
		return course.Course{}, account.ErrProfileNotFound
	}
	c.ID = repo.db.t.nextID("course")
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

// details joins the courses matching keep with their subject and teacher. Callers must hold the lock.
func (repo *courseRepository) details(keep func(c course.Course) bool) []course.Detail {
	details := make([]course.Detail, 0)
	for _, c := range repo.db.t.courses {
		if !keep(c) {
			continue
		}
		teacher := repo.db.t.teachers[c.TeacherID]
		details = append(details, course.Detail{
			Course:           c,
			SubjectName:      repo.db.t.subjects[c.SubjectID].Name,
			TeacherFirstName: teacher.FirstName,
			TeacherLastName:  teacher.LastName,
		})
	}
	sort.Slice(details, func(i, j int) bool {
		di, dj := details[i], details[j]
		if di.Period != dj.Period {
			return di.Period < dj.Period
		}
		if di.SubjectName != dj.SubjectName {
			return di.SubjectName < dj.SubjectName
		}
		return di.ID < dj.ID
	})
	return details
}

func (repo *courseRepository) ListCourses(_ context.Context, _ ...core.DBExecutor) ([]course.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.details(func(course.Course) bool { return true }), nil
}

func (repo *courseRepository) TeacherCourses(_ context.Context, teacherID int, _ ...core.DBExecutor) ([]course.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.details(func(c course.Course) bool { return c.TeacherID == teacherID }), nil
}

func (repo *courseRepository) StudentCourses(_ context.Context, studentID int, _ ...core.DBExecutor) ([]course.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.details(func(c course.Course) bool {
		_, ok := repo.db.t.enrollments[enrollmentKey{courseID: c.ID, studentID: studentID}]
		return ok
	}), nil
}

func (repo *courseRepository) Enroll(_ context.Context, courseID, studentID int, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.courses[courseID]; !ok {
		return course.Enrollment{}, course.ErrNotFound
	}
	if _, ok := repo.db.t.students[studentID]; !ok {
		return course.Enrollment{}, course.ErrStudentNotFound
	}
	key := enrollmentKey{courseID: courseID, studentID: studentID}
	if _, ok := repo.db.t.enrollments[key]; ok {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	now := time.Now().UTC()
	repo.db.t.enrollments[key] = now
	return course.Enrollment{CourseID: courseID, StudentID: studentID, EnrolledAt: now}, nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, courseID, studentID int, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.t.enrollments[enrollmentKey{courseID: courseID, studentID: studentID}]
	return ok, nil
}

func (repo *courseRepository) EnrolledStudents(_ context.Context, courseID int, _ ...core.DBExecutor) ([]account.Student, error) {
	repo.db.mu.RLock()
	profiles := make([]account.Profile, 0)
	for key := range repo.db.t.enrollments {
		if key.courseID == courseID {
			profiles = append(profiles, repo.db.t.students[key.studentID].Profile)
		}
	}
	repo.db.mu.RUnlock()

	sortProfiles(profiles)
	students := make([]account.Student, 0, len(profiles))
	for _, p := range profiles {
		students = append(students, account.Student{Profile: p})
	}
	return students, nil
}
