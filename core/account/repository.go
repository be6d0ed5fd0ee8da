package account

import (
	"context"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound             = core.NewError(core.KindNotFound, "account not found or inactive")
	ErrProfileNotFound      = core.NewError(core.KindNotFound, "profile not found")
	ErrAccountExists        = core.NewError(core.KindConflict, "an account with this username or email already exists")
	ErrInvalidPassword      = core.NewError(core.KindUnauthorized, "invalid password")
	ErrNoRoles              = core.NewError(core.KindForbidden, "account has no roles assigned")
	ErrRoleNotFound         = core.NewError(core.KindConfigurationMissing, "role is not provisioned")
	ErrRefreshTokenRequired = core.NewError(core.KindUnauthorized, "refresh token is required")
	ErrInvalidRefreshToken  = core.NewError(core.KindForbidden, "invalid or expired refresh token")
	ErrTooManyAttempts      = core.NewError(core.KindRateLimited, "too many failed login attempts, try again later")
)

// Repository persists accounts, their roles and their profiles.
// Every method runs on exec[0] when provided, which lets the Service group writes in a transaction.
type Repository interface {
	// ExistsByUsernameOrEmail checks both fields in a single query.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, exec ...core.DBExecutor) (bool, error)
	CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
	GetAccount(ctx context.Context, id int, exec ...core.DBExecutor) (Account, error)
	GetActiveAccountByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (Account, error)
	GetAccountByUsernameOrEmail(ctx context.Context, value string, exec ...core.DBExecutor) (Account, error)
	UpdatePassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error
	SetActive(ctx context.Context, id int, active bool, exec ...core.DBExecutor) error
	SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error

	GetRoleID(ctx context.Context, name string, exec ...core.DBExecutor) (int, error)
	AddRole(ctx context.Context, accountID, roleID int, exec ...core.DBExecutor) error
	RemoveRole(ctx context.Context, accountID int, role string, exec ...core.DBExecutor) error
	AccountRoles(ctx context.Context, accountID int, exec ...core.DBExecutor) ([]string, error)

	CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
	GetTeacher(ctx context.Context, id int, exec ...core.DBExecutor) (Teacher, error)
	GetTeacherByAccount(ctx context.Context, accountID int, exec ...core.DBExecutor) (Teacher, error)
	ListTeachers(ctx context.Context, exec ...core.DBExecutor) ([]Teacher, error)

	CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
	GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (Student, error)
	GetStudentByAccount(ctx context.Context, accountID int, exec ...core.DBExecutor) (Student, error)
	UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
	ListStudents(ctx context.Context, exec ...core.DBExecutor) ([]Student, error)
}

// LoginThrottle counts failed logins per username.
type LoginThrottle interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Failed(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
