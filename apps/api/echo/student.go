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

const contextStudentKey = "student"

var errStudentNotInCtx = errors.New("student profile not found in echo.Context")

type studentApi struct {
	accountSvc *account.Service
	courseSvc  *course.Service
	gradeSvc   *grade.Service
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{
		accountSvc: deps.AccountSvc,
		courseSvc:  deps.CourseSvc,
		gradeSvc:   deps.GradeSvc,
		validate:   deps.Validate,
	}

	sg := g.Group("", api.studentMiddleware)
	sg.GET("", api.retrieve)
	sg.PUT("", api.update)
	sg.GET("/courses", api.queryCourses)
	sg.GET("/courses/:id/grades", api.courseGrades)
	sg.GET("/courses/:id/final-average", api.finalAverage)
	sg.GET("/grades", api.queryGrades)
	sg.GET("/transcript", api.transcript)
}

// Handlers

func (api *studentApi) retrieve(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *studentApi) update(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	var data account.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.accountSvc.UpdateStudentProfile(ctx.Request().Context(), student.AccountID, data)
	if err != nil {
		return errors.Wrap(err, "updating student profile")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	courses, err := api.courseSvc.StudentCourses(ctx.Request().Context(), student.ID)
	if err != nil {
		return errors.Wrap(err, "querying student courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

// enrolledCourse returns the ID of the course in the path if the student is enrolled in it.
func (api *studentApi) enrolledCourse(ctx echo.Context, student account.Student) (int, error) {
	courseID, err := idParam(ctx, "id")
	if err != nil {
		return 0, err
	}
	enrolled, err := api.courseSvc.IsEnrolled(ctx.Request().Context(), courseID, student.ID)
	if err != nil {
		return 0, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return 0, course.ErrNotFound
	}
	return courseID, nil
}

func (api *studentApi) courseGrades(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	courseID, err := api.enrolledCourse(ctx, student)
	if err != nil {
		return err
	}

	grades, err := api.gradeSvc.CourseGrades(ctx.Request().Context(), student.ID, courseID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *studentApi) finalAverage(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	courseID, err := api.enrolledCourse(ctx, student)
	if err != nil {
		return err
	}

	final, err := api.gradeSvc.FinalAverage(ctx.Request().Context(), student.ID, courseID)
	if err != nil {
		return errors.Wrap(err, "computing final average")
	}
	return ctx.JSON(http.StatusOK, final)
}

func (api *studentApi) queryGrades(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	grades, err := api.gradeSvc.StudentGrades(ctx.Request().Context(), student.ID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *studentApi) transcript(ctx echo.Context) error {
	student, ok := ctx.Get(contextStudentKey).(account.Student)
	if !ok {
		return errors.Wrap(errStudentNotInCtx, "retrieving student from context")
	}
	entries, err := api.gradeSvc.Transcript(ctx.Request().Context(), student.ID)
	if err != nil {
		return errors.Wrap(err, "building transcript")
	}
	return ctx.JSON(http.StatusOK, entries)
}

// studentMiddleware loads the student profile of the current account.
func (api *studentApi) studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, ok := contextIdentity(ctx)
		if !ok {
			return errUnauthorized
		}
		student, err := api.accountSvc.StudentProfile(ctx.Request().Context(), id.AccountID)
		if err != nil {
			return errors.Wrap(err, "fetching student profile")
		}
		ctx.Set(contextStudentKey, student)
		return next(ctx)
	}
}
