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

type adminApi struct {
	accountSvc *account.Service
	courseSvc  *course.Service
	gradeSvc   *grade.Service
	validate   *validator.Validate
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{
		accountSvc: deps.AccountSvc,
		courseSvc:  deps.CourseSvc,
		gradeSvc:   deps.GradeSvc,
		validate:   deps.Validate,
	}

	g.POST("/teachers", api.createTeacher)
	g.GET("/teachers", api.queryTeachers)
	g.POST("/subjects", api.createSubject)
	g.GET("/subjects", api.querySubjects)
	g.POST("/courses", api.createCourse)
	g.GET("/courses", api.queryCourses)
	g.POST("/blocks", api.createBlock)
	g.GET("/blocks", api.queryBlocks)
	g.PUT("/blocks/:id/weights", api.setWeights)
	g.PATCH("/accounts/:id/status", api.setStatus)
}

// Handlers

func (api *adminApi) createTeacher(ctx echo.Context) error {
	var data account.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	teacher, err := api.accountSvc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

func (api *adminApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.accountSvc.ListTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *adminApi) createSubject(ctx echo.Context) error {
	var data course.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	subj, err := api.courseSvc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *adminApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.courseSvc.ListSubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) queryCourses(ctx echo.Context) error {
	courses, err := api.courseSvc.ListCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) createBlock(ctx echo.Context) error {
	var data grade.NewBlock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBlock")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.gradeSvc.CreateBlock(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation block")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *adminApi) queryBlocks(ctx echo.Context) error {
	blocks, err := api.gradeSvc.ListBlocks(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying evaluation blocks")
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *adminApi) setWeights(ctx echo.Context) error {
	blockID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data grade.Weights
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Weights")
	}

	b, err := api.gradeSvc.SetWeights(ctx.Request().Context(), blockID, data)
	if err != nil {
		return errors.Wrap(err, "setting block weights")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *adminApi) setStatus(ctx echo.Context) error {
	accountID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if id, ok := contextIdentity(ctx); ok && id.AccountID == accountID && !*data.IsActive {
		// an admin cannot lock themselves out
		return errHttpForbidden
	}
	if err = api.accountSvc.SetActive(ctx.Request().Context(), accountID, *data.IsActive); err != nil {
		return errors.Wrap(err, "setting account status")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{ID: accountID, IsActive: *data.IsActive})
}
