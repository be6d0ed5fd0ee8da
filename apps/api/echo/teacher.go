package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
)

const (
	contextTeacherKey = "teacher"
	contextCourseKey  = "course"
)

var (
	errTeacherNotInCtx = errors.New("teacher profile not found in echo.Context")
	errCourseNotInCtx  = errors.New("course not found in echo.Context")
)

type teacherApi struct {
	accountSvc *account.Service
	courseSvc  *course.Service
	gradeSvc   *grade.Service
	validate   *validator.Validate
}

func registerTeacherAPI(g *echo.Group, deps ServerDeps) {
	api := teacherApi{
		accountSvc: deps.AccountSvc,
		courseSvc:  deps.CourseSvc,
		gradeSvc:   deps.GradeSvc,
		validate:   deps.Validate,
	}

	tg := g.Group("", api.teacherMiddleware)
	tg.GET("/courses", api.queryCourses)
	tg.GET("/students/available", api.queryAvailableStudents)

	// course endpoints, restricted to the teacher's own courses
	cg := tg.Group("/courses/:id", api.ownCourseMiddleware)
	cg.GET("/students", api.roster)
	cg.POST("/students/:studentId", api.enroll)
	cg.GET("/students/:studentId/grades", api.studentGrades)
	cg.GET("/students/:studentId/final-average", api.studentFinalAverage)
	cg.POST("/grades", api.recordGrade)
	cg.POST("/grades/import", api.importGrades)
}

// Handlers

func (api *teacherApi) queryCourses(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextTeacherKey).(account.Teacher)
	if !ok {
		return errors.Wrap(errTeacherNotInCtx, "retrieving teacher from context")
	}
	courses, err := api.courseSvc.TeacherCourses(ctx.Request().Context(), teacher.ID)
	if err != nil {
		return errors.Wrap(err, "querying teacher courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *teacherApi) queryAvailableStudents(ctx echo.Context) error {
	students, err := api.courseSvc.AvailableStudents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) roster(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	roster, err := api.courseSvc.Roster(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "fetching roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *teacherApi) enroll(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	studentID, err := idParam(ctx, "studentId")
	if err != nil {
		return err
	}

	enr, err := api.courseSvc.Enroll(ctx.Request().Context(), c.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *teacherApi) studentGrades(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	studentID, err := idParam(ctx, "studentId")
	if err != nil {
		return err
	}

	grades, err := api.gradeSvc.CourseGrades(ctx.Request().Context(), studentID, c.ID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *teacherApi) studentFinalAverage(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	studentID, err := idParam(ctx, "studentId")
	if err != nil {
		return err
	}

	final, err := api.gradeSvc.FinalAverage(ctx.Request().Context(), studentID, c.ID)
	if err != nil {
		return errors.Wrap(err, "computing final average")
	}
	return ctx.JSON(http.StatusOK, final)
}

func (api *teacherApi) recordGrade(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	data.CourseID = c.ID

	g, err := api.gradeSvc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *teacherApi) importGrades(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotInCtx, "retrieving course from context")
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errFileRequired
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	results, err := api.gradeSvc.Import(ctx.Request().Context(), c.ID, f)
	if err != nil {
		err = errors.Wrap(err, "importing grades")
		if len(results) > 0 {
			return &partialImportError{err: err, results: results}
		}
		return err
	}
	return ctx.JSON(http.StatusOK, results)
}

// teacherMiddleware loads the teacher profile of the current account.
func (api *teacherApi) teacherMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, ok := contextIdentity(ctx)
		if !ok {
			return errUnauthorized
		}
		teacher, err := api.accountSvc.TeacherProfile(ctx.Request().Context(), id.AccountID)
		if err != nil {
			return errors.Wrap(err, "fetching teacher profile")
		}
		ctx.Set(contextTeacherKey, teacher)
		return next(ctx)
	}
}

// ownCourseMiddleware loads the course of the path, as long as it is assigned to the current teacher.
func (api *teacherApi) ownCourseMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		teacher, ok := ctx.Get(contextTeacherKey).(account.Teacher)
		if !ok {
			return errors.Wrap(errTeacherNotInCtx, "retrieving teacher from context")
		}
		courseID, err := idParam(ctx, "id")
		if err != nil {
			return err
		}

		c, err := api.courseSvc.TeacherCourse(ctx.Request().Context(), teacher.ID, courseID)
		if err != nil {
			return errors.Wrap(err, "fetching course")
		}
		ctx.Set(contextCourseKey, c)
		return next(ctx)
	}
}
