package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core"
)

const invalidIDText = "must be a positive integer"

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	RefreshResponse struct {
		AccessToken string `json:"access_token"`
	}

	StatusRequest struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}

	StatusResponse struct {
		ID       int  `json:"id"`
		IsActive bool `json:"is_active"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (sr *StatusRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

// idParam reads a positive integer path parameter.
func idParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: invalidIDText})
	}
	return id, nil
}
