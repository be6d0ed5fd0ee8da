package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	testutil "github.com/trezcool/academia/tests"
)

type teacherFixture struct {
	env
	token    string
	course   course.Course
	foreign  course.Course
	student  account.Student
	newcomer account.Student
	block    grade.Block
	draft    grade.Block
}

func setupTeacher(t *testing.T, wrapGrades ...func(grade.Repository) grade.Repository) teacherFixture {
	var wrap func(grade.Repository) grade.Repository
	if len(wrapGrades) > 0 {
		wrap = wrapGrades[0]
	}
	e := setupWith(t, wrap)

	tAcc, teacher := testutil.CreateTeacher(t, e.accRepo, "tina", pwd, "Tina", "Turner")
	_, other := testutil.CreateTeacher(t, e.accRepo, "otto", pwd, "Otto", "Octavius")
	_, student := testutil.CreateStudent(t, e.accRepo, "sam", pwd, "Sam", "Smith")
	_, newcomer := testutil.CreateStudent(t, e.accRepo, "nina", pwd, "Nina", "Simone")

	c := testutil.CreateCourse(t, e.courseRepo, teacher.ID, "Algebra", "2024-1")
	testutil.Enroll(t, e.courseRepo, c.ID, student.ID)

	return teacherFixture{
		env:      e,
		token:    e.getToken(t, tAcc, account.RoleTeacher),
		course:   c,
		foreign:  testutil.CreateCourse(t, e.courseRepo, other.ID, "Chemistry", "2024-1"),
		student:  student,
		newcomer: newcomer,
		block:    testutil.CreateBlock(t, e.gradeRepo, "First term", &grade.Weights{Quiz: 30, Midterm: 30, Project: 40}),
		draft:    testutil.CreateBlock(t, e.gradeRepo, "Draft", nil),
	}
}

func (f teacherFixture) coursePath(c course.Course, suffix string) string {
	return "/v1/teacher/courses/" + itoa(c.ID) + suffix
}

func (f teacherFixture) gradeBody(t *testing.T, studentID, blockID int, quiz, midterm, project float64) []byte {
	return marchallObj(t, grade.NewGrade{
		StudentID: studentID,
		BlockID:   blockID,
		Quiz:      testutil.Float(quiz),
		Midterm:   testutil.Float(midterm),
		Project:   testutil.Float(project),
	})
}

func Test_teacherApi_recordGrade(t *testing.T) {
	f := setupTeacher(t)
	path := f.coursePath(f.course, "/grades")

	tests := []httpTest{
		{
			name: "other teacher's course", path: f.coursePath(f.foreign, "/grades"),
			body: f.gradeBody(t, f.student.ID, f.block.ID, 4, 3, 5), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotCourseTeacher.Error()}),
		},
		{
			name: "unknown course", path: "/v1/teacher/courses/999/grades",
			body: f.gradeBody(t, f.student.ID, f.block.ID, 4, 3, 5), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name: "score out of range", path: path,
			body: f.gradeBody(t, f.student.ID, f.block.ID, 6, 3, 5), wantCode: http.StatusBadRequest,
		},
		{
			name: "missing scores", path: path,
			body: []byte(`{"student_id":` + itoa(f.student.ID) + `,"block_id":` + itoa(f.block.ID) + `}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"quiz":    "this field is required",
				"midterm": "this field is required",
				"project": "this field is required",
			}),
		},
		{
			name: "student not enrolled", path: path,
			body: f.gradeBody(t, f.newcomer.ID, f.block.ID, 4, 3, 5), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "student is not enrolled in this course"}),
		},
		{
			name: "block not configured", path: path,
			body: f.gradeBody(t, f.student.ID, f.draft.ID, 4, 3, 5), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: grade.ErrBlockNotConfigured.Error()}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].token = f.token
	}
	f.run(t, tests)

	record := func(t *testing.T, quiz, midterm, project float64) grade.Grade {
		req, rec := newAuthRequest(http.MethodPost, path, f.token, f.gradeBody(t, f.student.ID, f.block.ID, quiz, midterm, project))
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var g grade.Grade
		if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return g
	}

	var first grade.Grade
	t.Run("recorded", func(t *testing.T) {
		first = record(t, 4, 3, 5)
		assert.Equal(t, 4.1, first.WeightedAverage)
		assert.Equal(t, grade.Passed, first.Verdict)
		assert.Equal(t, f.course.ID, first.CourseID)
	})

	t.Run("recorded again", func(t *testing.T) {
		g := record(t, 1, 1, 1)
		assert.Equal(t, first.ID, g.ID)
		assert.Equal(t, 1.0, g.WeightedAverage)
		assert.Equal(t, grade.Failed, g.Verdict)
	})

	t.Run("final average", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, f.coursePath(f.course, "/students/"+itoa(f.student.ID)+"/final-average"), f.token)
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var final grade.FinalAverage
		if err := json.Unmarshal(rec.Body.Bytes(), &final); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		assert.Equal(t, grade.FinalAverage{StudentID: f.student.ID, CourseID: f.course.ID, Blocks: 1, Average: 1, Verdict: grade.Failed}, final)
	})

	f.run(t, []httpTest{{
		name: "final average: no grades", method: http.MethodGet, token: f.token,
		path:     f.coursePath(f.course, "/students/"+itoa(f.newcomer.ID)+"/final-average"),
		wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: grade.ErrNoGrades.Error()}),
	}})
}

func Test_teacherApi_enroll(t *testing.T) {
	f := setupTeacher(t)
	path := f.coursePath(f.course, "/students/"+itoa(f.newcomer.ID))

	tests := []httpTest{
		{name: "enrolled", path: path, wantCode: http.StatusCreated},
		{
			name: "already enrolled", path: path, wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: course.ErrAlreadyEnrolled.Error()}),
		},
		{
			name: "unknown student", path: f.coursePath(f.course, "/students/999"), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrStudentNotFound.Error()}),
		},
		{
			name: "bad student id", path: f.coursePath(f.course, "/students/abc"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"studentId": "must be a positive integer"}),
		},
		{
			name: "other teacher's course", path: f.coursePath(f.foreign, "/students/"+itoa(f.newcomer.ID)),
			wantCode: http.StatusForbidden,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].token = f.token
	}
	f.run(t, tests)

	t.Run("roster", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, f.coursePath(f.course, "/students"), f.token)
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var roster course.Roster
		if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if assert.Len(t, roster.Students, 2) {
			assert.Equal(t, "Simone", roster.Students[0].LastName.String)
			assert.Equal(t, "Smith", roster.Students[1].LastName.String)
		}
		assert.False(t, roster.Alert.Valid)
	})
}

func Test_teacherApi_courses(t *testing.T) {
	f := setupTeacher(t)

	req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/courses", f.token)
	f.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var courses []course.Detail
	if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if assert.Len(t, courses, 1) {
		assert.Equal(t, f.course.ID, courses[0].ID)
		assert.Equal(t, "Algebra", courses[0].SubjectName)
	}

	f.run(t, []httpTest{
		{name: "available students", method: http.MethodGet, path: "/v1/teacher/students/available", token: f.token},
		{
			name: "teacher role without profile", method: http.MethodGet, path: "/v1/teacher/courses",
			token:    f.getToken(t, testutil.CreateAccount(t, f.accRepo, "ghost", pwd, true, account.RoleTeacher), account.RoleTeacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: account.ErrProfileNotFound.Error()}),
		},
		{
			name: "student", method: http.MethodGet, path: "/v1/teacher/courses",
			token:    f.getToken(t, account.Account{ID: f.student.AccountID}, account.RoleStudent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})
}

func newUploadRequest(t *testing.T, path, token string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if content != nil {
		part, err := w.CreateFormFile("file", "grades.xlsx")
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		_, _ = part.Write(content)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Writer.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

// gradesWorkbook returns an xlsx file holding the import header followed by rows.
func gradesWorkbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	rows = append([][]interface{}{{"student_id", "block_id", "quiz", "midterm", "project"}}, rows...)
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := wb.SetSheetRow("Sheet1", cell, &rows[i]); err != nil {
			t.Fatalf("SetSheetRow() failed: %v", err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() failed: %v", err)
	}
	return buf
}

// brokenUpserts lets the first `ok` upserts through, then fails the others.
type brokenUpserts struct {
	grade.Repository
	ok int
}

func (r *brokenUpserts) UpsertGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	if r.ok == 0 {
		return grade.Grade{}, errors.New("connection reset by peer")
	}
	r.ok--
	return r.Repository.UpsertGrade(ctx, g, exec...)
}

func Test_teacherApi_importGrades_interrupted(t *testing.T) {
	f := setupTeacher(t, func(repo grade.Repository) grade.Repository {
		return &brokenUpserts{Repository: repo, ok: 1}
	})
	buf := gradesWorkbook(t,
		[]interface{}{f.student.ID, f.block.ID, 4, 3, 5},
		[]interface{}{f.newcomer.ID, f.block.ID, 4, 3, 5},
		[]interface{}{f.student.ID, f.block.ID, 1, 1, 1},
	)

	req, rec := newUploadRequest(t, f.coursePath(f.course, "/grades/import"), f.token, buf.Bytes())
	f.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusInternalServerError, rec.Body.String())
	}

	var res struct {
		Error   string               `json:"error"`
		Results []grade.ImportResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), res.Error)
	if assert.Len(t, res.Results, 2) {
		if assert.NotNil(t, res.Results[0].Grade) {
			assert.Equal(t, 4.1, res.Results[0].Grade.WeightedAverage)
		}
		assert.Equal(t, 3, res.Results[1].Row)
	}

	grades, _ := f.gradeRepo.CourseGrades(context.Background(), f.student.ID, f.course.ID)
	if assert.Len(t, grades, 1) {
		assert.Equal(t, 4.1, grades[0].WeightedAverage, "the interrupted row left the saved grade alone")
	}
}

func Test_teacherApi_importGrades(t *testing.T) {
	f := setupTeacher(t)
	path := f.coursePath(f.course, "/grades/import")

	buf := gradesWorkbook(t,
		[]interface{}{f.student.ID, f.block.ID, 4, 3, 5},
		[]interface{}{f.newcomer.ID, f.block.ID, 4, 3, 5},
	)

	t.Run("imported", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, f.token, buf.Bytes())
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var results []grade.ImportResult
		if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if assert.Len(t, results, 2) {
			if assert.NotNil(t, results[0].Grade) {
				assert.Equal(t, 4.1, results[0].Grade.WeightedAverage)
			}
			assert.Equal(t, grade.ImportResult{Row: 3, Error: "student_id: student is not enrolled in this course"}, results[1])
		}
	})

	t.Run("file required", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, f.token, nil)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}, rec)
	})

	t.Run("not a workbook", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, f.token, []byte("student_id,block_id\n"))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "not a valid xlsx workbook"}),
		}, rec)
	})
}
