package grade_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

const pwd = "Str0ng!Passw0rd"

type fixture struct {
	svc        *grade.Service
	repo       grade.Repository
	courses    course.Repository
	validate   *validator.Validate
	course     course.Course
	student    account.Student
	outsider   account.Student
	firstTerm  grade.Block
	secondTerm grade.Block
	draft      grade.Block
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dummydb.Open()
	accRepo := dummydb.NewAccountRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	gradeRepo := dummydb.NewGradeRepository(db)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	_, teacher := testutil.CreateTeacher(t, accRepo, "gus", pwd, "Gustavo", "Fring")
	_, student := testutil.CreateStudent(t, accRepo, "skyler", pwd, "Skyler", "White")
	_, outsider := testutil.CreateStudent(t, accRepo, "hank", pwd, "Hank", "Schrader")
	c := testutil.CreateCourse(t, courseRepo, teacher.ID, "Algebra", "2024-1")
	testutil.Enroll(t, courseRepo, c.ID, student.ID)

	return fixture{
		svc:        grade.NewService(gradeRepo, courseRepo, validate),
		repo:       gradeRepo,
		courses:    courseRepo,
		validate:   validate,
		course:     c,
		student:    student,
		outsider:   outsider,
		firstTerm:  testutil.CreateBlock(t, gradeRepo, "First term", &grade.Weights{Quiz: 30, Midterm: 30, Project: 40}),
		secondTerm: testutil.CreateBlock(t, gradeRepo, "Second term", &grade.Weights{Quiz: 20, Midterm: 30, Project: 50}),
		draft:      testutil.CreateBlock(t, gradeRepo, "Draft", nil),
	}
}

func (f fixture) newGrade(blockID int, quiz, midterm, project float64) grade.NewGrade {
	return grade.NewGrade{
		StudentID: f.student.ID,
		CourseID:  f.course.ID,
		BlockID:   blockID,
		Quiz:      testutil.Float(quiz),
		Midterm:   testutil.Float(midterm),
		Project:   testutil.Float(project),
	}
}

func TestService_Record(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	g, err := f.svc.Record(ctx, f.newGrade(f.firstTerm.ID, 4, 3, 5))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	assert.NotZero(t, g.ID)
	assert.Equal(t, 4.1, g.WeightedAverage)
	assert.Equal(t, grade.Passed, g.Verdict)

	// recording again replaces the scores of the same grade
	again, err := f.svc.Record(ctx, f.newGrade(f.firstTerm.ID, 1, 1, 1))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	assert.Equal(t, g.ID, again.ID)
	assert.Equal(t, g.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1.0, again.WeightedAverage)
	assert.Equal(t, grade.Failed, again.Verdict)

	grades, err := f.svc.CourseGrades(ctx, f.student.ID, f.course.ID)
	assert.NoError(t, err)
	if assert.Len(t, grades, 1) {
		assert.Equal(t, "First term", grades[0].BlockName)
		assert.Equal(t, grade.Scores{Quiz: 1, Midterm: 1, Project: 1}, grades[0].Scores)
		assert.Equal(t, grade.Failed, grades[0].Verdict)
	}
}

func TestService_Record_errors(t *testing.T) {
	f := setup(t)

	outsiderGrade := f.newGrade(f.firstTerm.ID, 4, 4, 4)
	outsiderGrade.StudentID = f.outsider.ID
	missingScore := f.newGrade(f.firstTerm.ID, 4, 4, 4)
	missingScore.Midterm = nil
	unknownCourse := f.newGrade(f.firstTerm.ID, 4, 4, 4)
	unknownCourse.CourseID += 100

	tests := []struct {
		name     string
		ng       grade.NewGrade
		wantErr  error // root cause, when it is a sentinel
		wantKind core.Kind
	}{
		{name: "score above max", ng: f.newGrade(f.firstTerm.ID, 5.5, 4, 4), wantKind: core.KindValidation},
		{name: "negative score", ng: f.newGrade(f.firstTerm.ID, 4, -1, 4), wantKind: core.KindValidation},
		{name: "more than 2 decimals", ng: f.newGrade(f.firstTerm.ID, 1.005, 1.004, 0), wantKind: core.KindValidation},
		{name: "missing score", ng: missingScore, wantKind: core.KindValidation},
		{name: "not enrolled", ng: outsiderGrade, wantKind: core.KindValidation},
		{name: "unknown course", ng: unknownCourse, wantErr: course.ErrNotFound, wantKind: core.KindNotFound},
		{name: "unknown block", ng: f.newGrade(f.draft.ID+100, 4, 4, 4), wantErr: grade.ErrBlockNotFound, wantKind: core.KindNotFound},
		{name: "block not configured", ng: f.newGrade(f.draft.ID, 4, 4, 4), wantErr: grade.ErrBlockNotConfigured, wantKind: core.KindConfigurationMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Record(context.Background(), tt.ng)
			if err == nil {
				t.Fatal("Record() error = nil")
			}
			if tt.wantErr != nil && errors.Cause(err) != tt.wantErr {
				t.Errorf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}

	grades, _ := f.svc.StudentGrades(context.Background(), f.student.ID)
	assert.Empty(t, grades, "failed records must not persist anything")
}

func TestService_SetWeights(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.SetWeights(ctx, f.draft.ID, grade.Weights{Quiz: 25, Midterm: 25, Project: 50})
	if err != nil {
		t.Fatalf("SetWeights() error = %v", err)
	}
	if assert.NotNil(t, b.Weights) {
		assert.Equal(t, 100.0, b.Weights.Total())
	}

	g, err := f.svc.Record(ctx, f.newGrade(f.draft.ID, 4, 4, 2))
	assert.NoError(t, err)
	assert.Equal(t, 3.0, g.WeightedAverage)
	assert.Equal(t, grade.Passed, g.Verdict)

	tests := []struct {
		name     string
		blockID  int
		w        grade.Weights
		wantErr  error
		wantKind core.Kind
	}{
		{"does not add up", f.draft.ID, grade.Weights{Quiz: 30, Midterm: 30, Project: 30}, grade.ErrWeightsTotal, core.KindValidation},
		{"out of range", f.draft.ID, grade.Weights{Quiz: 120, Midterm: -20, Project: 0}, nil, core.KindValidation},
		{"more than 2 decimals", f.draft.ID, grade.Weights{Quiz: 33.333, Midterm: 33.333, Project: 33.334}, nil, core.KindValidation},
		{"unknown block", f.draft.ID + 100, grade.Weights{Quiz: 30, Midterm: 30, Project: 40}, grade.ErrBlockNotFound, core.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetWeights(ctx, tt.blockID, tt.w)
			if tt.wantErr != nil && errors.Cause(err) != tt.wantErr {
				t.Errorf("SetWeights() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}

func TestService_twoDecimals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.SetWeights(ctx, f.draft.ID, grade.Weights{Quiz: 33.33, Midterm: 33.33, Project: 33.34})
	if err != nil {
		t.Fatalf("SetWeights() error = %v", err)
	}
	stored, _ := f.repo.GetWeights(ctx, f.draft.ID)
	assert.Equal(t, stored, b.Weights)

	g, err := f.svc.Record(ctx, f.newGrade(f.draft.ID, 4.25, 3.75, 0.01))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	assert.Equal(t, grade.Scores{Quiz: 4.25, Midterm: 3.75, Project: 0.01}, g.Scores)
	avg, _ := grade.ComputeBlockAverage(g.Scores, stored)
	assert.Equal(t, avg, g.WeightedAverage)
}

func TestService_FinalAverage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.FinalAverage(ctx, f.student.ID, f.course.ID)
	assert.Equal(t, grade.ErrNoGrades, errors.Cause(err))

	if _, err = f.svc.Record(ctx, f.newGrade(f.firstTerm.ID, 4, 3, 5)); err != nil { // 4.10
		t.Fatalf("Record() error = %v", err)
	}
	if _, err = f.svc.Record(ctx, f.newGrade(f.secondTerm.ID, 2, 2, 2)); err != nil { // 2.00
		t.Fatalf("Record() error = %v", err)
	}

	final, err := f.svc.FinalAverage(ctx, f.student.ID, f.course.ID)
	if err != nil {
		t.Fatalf("FinalAverage() error = %v", err)
	}
	assert.Equal(t, 2, final.Blocks)
	assert.Equal(t, 3.05, final.Average)
	assert.Equal(t, grade.Passed, final.Verdict)

	transcript, err := f.svc.Transcript(ctx, f.student.ID)
	assert.NoError(t, err)
	assert.Equal(t, []grade.TranscriptEntry{{
		CourseID:     f.course.ID,
		SubjectName:  "Algebra",
		Period:       "2024-1",
		FinalAverage: 3.05,
		Verdict:      grade.Passed,
	}}, transcript)

	transcript, err = f.svc.Transcript(ctx, f.outsider.ID)
	assert.NoError(t, err)
	assert.Empty(t, transcript)
}

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if row == nil {
			continue
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf
}

func TestService_Import(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	buf := workbook(t,
		[]interface{}{"student_id", "block_id", "quiz", "midterm", "project"},
		[]interface{}{f.student.ID, f.firstTerm.ID, 4, 3, 5},
		nil,
		[]interface{}{f.outsider.ID, f.firstTerm.ID, 4, 3, 5},
		[]interface{}{f.student.ID, f.secondTerm.ID, "abc", 3, 5},
		[]interface{}{f.student.ID, f.draft.ID, 4, 3, 5},
		[]interface{}{f.student.ID, f.secondTerm.ID, 2, 2, 2.5},
	)

	results, err := f.svc.Import(ctx, f.course.ID, buf)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !assert.Len(t, results, 5) {
		return
	}

	assert.Equal(t, 2, results[0].Row)
	if assert.NotNil(t, results[0].Grade) {
		assert.Equal(t, 4.1, results[0].Grade.WeightedAverage)
	}
	assert.Equal(t, grade.ImportResult{Row: 4, Error: "student_id: student is not enrolled in this course"}, results[1])
	assert.Equal(t, grade.ImportResult{Row: 5, Error: "quiz: not a valid number"}, results[2])
	assert.Equal(t, grade.ImportResult{Row: 6, Error: grade.ErrBlockNotConfigured.Error()}, results[3])
	assert.Equal(t, 7, results[4].Row)
	if assert.NotNil(t, results[4].Grade) {
		assert.Equal(t, 2.25, results[4].Grade.WeightedAverage)
		assert.Equal(t, grade.Failed, results[4].Grade.Verdict)
	}

	grades, _ := f.svc.CourseGrades(ctx, f.student.ID, f.course.ID)
	assert.Len(t, grades, 2)
}

// flakyRepo fails every upsert after the first `ok` ones.
type flakyRepo struct {
	grade.Repository
	ok    int
	calls int
}

func (r *flakyRepo) UpsertGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	r.calls++
	if r.calls > r.ok {
		return grade.Grade{}, errors.New("connection reset by peer")
	}
	return r.Repository.UpsertGrade(ctx, g, exec...)
}

func TestService_Import_stopsOnInternalError(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := &flakyRepo{Repository: f.repo, ok: 1}
	svc := grade.NewService(repo, f.courses, f.validate)

	buf := workbook(t,
		[]interface{}{"student_id", "block_id", "quiz", "midterm", "project"},
		[]interface{}{f.student.ID, f.firstTerm.ID, 4, 3, 5},
		[]interface{}{f.outsider.ID, f.firstTerm.ID, 4, 3, 5},
		[]interface{}{f.student.ID, f.secondTerm.ID, 2, 2, 2},
		[]interface{}{f.student.ID, f.secondTerm.ID, 5, 5, 5},
	)

	results, err := svc.Import(ctx, f.course.ID, buf)
	if err == nil {
		t.Fatal("Import() error = nil")
	}
	assert.Equal(t, core.KindInternal, core.KindOf(err))
	if assert.Len(t, results, 2, "rows handled before the failure are reported") {
		assert.NotNil(t, results[0].Grade)
		assert.Equal(t, 3, results[1].Row)
		assert.NotEmpty(t, results[1].Error)
	}
	assert.Equal(t, 2, repo.calls, "import stops at the failed row")

	grades, _ := f.svc.CourseGrades(ctx, f.student.ID, f.course.ID)
	assert.Len(t, grades, 1, "the first row stays recorded")
}

func TestService_Import_badFile(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		buf  *bytes.Buffer
	}{
		{"not a workbook", bytes.NewBufferString("student_id,block_id,quiz,midterm,project\n")},
		{"wrong header", workbook(t, []interface{}{"student", "block", "quiz", "midterm", "project"})},
		{"empty sheet", workbook(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := f.svc.Import(context.Background(), f.course.ID, tt.buf)
			assert.Nil(t, results)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
		})
	}
}
