package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

type Service struct {
	db       core.Transactor
	repo     Repository
	tokens   TokenCodec
	throttle LoginThrottle
	mailSvc  core.EmailService
	conf     *core.Config
}

func NewService(
	db core.Transactor,
	repo Repository,
	tokens TokenCodec,
	throttle LoginThrottle,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tokens, "tokens"),
		vala.IsNotNil(throttle, "throttle"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		db:       db,
		repo:     repo,
		tokens:   tokens,
		throttle: throttle,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string) error {
	exists, err := svc.repo.ExistsByUsernameOrEmail(ctx, uname, email)
	if err != nil {
		return errors.Wrap(err, "checking username and email uniqueness")
	}
	if exists {
		return ErrAccountExists
	}
	return nil
}

func newAccount(uname, email, pwd string) (Account, error) {
	now := time.Now().UTC()
	acc := Account{
		Username:  uname,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acc.SetPassword(pwd); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	return acc, nil
}

// createWithRole inserts acc and grants it role. It must run inside a transaction.
func (svc *Service) createWithRole(ctx context.Context, acc Account, role string, exec core.DBExecutor) (Account, error) {
	acc, err := svc.repo.CreateAccount(ctx, acc, exec)
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}
	roleID, err := svc.repo.GetRoleID(ctx, role, exec)
	if err != nil {
		return Account{}, errors.Wrapf(err, "finding %s role", role)
	}
	if err = svc.repo.AddRole(ctx, acc.ID, roleID, exec); err != nil {
		return Account{}, errors.Wrapf(err, "granting %s role", role)
	}
	return acc, nil
}

// Register creates an active student account along with its (possibly partial) student profile.
// Nothing is persisted unless every step succeeds.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Student, error) {
	if err := svc.checkUniqueness(ctx, na.Username, na.Email); err != nil {
		return Student{}, err
	}
	acc, err := newAccount(na.Username, na.Email, na.Password)
	if err != nil {
		return Student{}, err
	}

	var student Student
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if acc, err = svc.createWithRole(ctx, acc, RoleStudent, exec); err != nil {
			return err
		}
		student, err = svc.repo.CreateStudent(ctx, Student{Profile{
			AccountID: acc.ID,
			FirstName: null.NewString(na.FirstName, na.FirstName != ""),
			LastName:  null.NewString(na.LastName, na.LastName != ""),
			Document:  null.NewString(na.Document, na.Document != ""),
			Email:     null.StringFrom(acc.Email),
		}}, exec)
		return errors.Wrap(err, "creating student profile")
	})
	if err != nil {
		return Student{}, err
	}

	svc.sendWelcomeMail(acc)
	return student, nil
}

// CreateTeacher creates an active teacher account along with its complete teacher profile.
func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if err := svc.checkUniqueness(ctx, nt.Username, nt.Email); err != nil {
		return Teacher{}, err
	}
	acc, err := newAccount(nt.Username, nt.Email, nt.Password)
	if err != nil {
		return Teacher{}, err
	}

	var teacher Teacher
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if acc, err = svc.createWithRole(ctx, acc, RoleTeacher, exec); err != nil {
			return err
		}
		teacher, err = svc.repo.CreateTeacher(ctx, Teacher{Profile{
			AccountID: acc.ID,
			FirstName: null.StringFrom(nt.FirstName),
			LastName:  null.StringFrom(nt.LastName),
			Document:  null.StringFrom(nt.Document),
			Email:     null.StringFrom(acc.Email),
		}}, exec)
		return errors.Wrap(err, "creating teacher profile")
	})
	if err != nil {
		return Teacher{}, err
	}

	svc.sendWelcomeMail(acc)
	return teacher, nil
}

// CreateAdmin creates an active account holding the Administrator role.
func (svc *Service) CreateAdmin(ctx context.Context, na NewAccount) (Account, error) {
	if err := svc.checkUniqueness(ctx, na.Username, na.Email); err != nil {
		return Account{}, err
	}
	acc, err := newAccount(na.Username, na.Email, na.Password)
	if err != nil {
		return Account{}, err
	}

	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		acc, err = svc.createWithRole(ctx, acc, RoleAdmin, exec)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Login authenticates an active account and issues its access and refresh tokens.
func (svc *Service) Login(ctx context.Context, username, pwd string) (LoginResult, error) {
	username = core.CleanString(username, true /* lower */)

	blocked, err := svc.throttle.Blocked(ctx, username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "checking login throttle")
	}
	if blocked {
		return LoginResult{}, ErrTooManyAttempts
	}

	acc, err := svc.repo.GetActiveAccountByUsername(ctx, username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "finding active account")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		if err = svc.throttle.Failed(ctx, username); err != nil {
			return LoginResult{}, errors.Wrap(err, "recording failed login")
		}
		return LoginResult{}, ErrInvalidPassword
	}

	roles, err := svc.repo.AccountRoles(ctx, acc.ID)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "fetching account roles")
	}
	if len(roles) == 0 {
		return LoginResult{}, ErrNoRoles
	}

	claims := Claims{AccountID: acc.ID, Roles: roles}
	res := LoginResult{
		Account: Summary{ID: acc.ID, Username: acc.Username, Email: acc.Email, Roles: roles},
	}

	if HasAnyRole([]string{RoleTeacher}, roles) {
		teacher, err := svc.repo.GetTeacherByAccount(ctx, acc.ID)
		switch {
		case err == nil:
			id := teacher.ID
			claims.TeacherID = &id
			res.Teacher = &teacher
		case errors.Cause(err) != ErrProfileNotFound:
			return LoginResult{}, errors.Wrap(err, "fetching teacher profile")
		}
	}
	if HasAnyRole([]string{RoleStudent}, roles) {
		student, err := svc.repo.GetStudentByAccount(ctx, acc.ID)
		switch {
		case err == nil:
			id := student.ID
			claims.StudentID = &id
			res.Student = &student
		case errors.Cause(err) != ErrProfileNotFound:
			return LoginResult{}, errors.Wrap(err, "fetching student profile")
		}
	}

	if res.AccessToken, err = svc.tokens.SignAccessToken(claims, svc.conf.Auth.AccessTokenTTL); err != nil {
		return LoginResult{}, errors.Wrap(err, "signing access token")
	}
	if res.RefreshToken, err = svc.tokens.SignRefreshToken(acc.ID); err != nil {
		return LoginResult{}, errors.Wrap(err, "signing refresh token")
	}

	if err = svc.repo.SetLastLogin(ctx, acc.ID, time.Now().UTC()); err != nil {
		return LoginResult{}, errors.Wrap(err, "updating last login")
	}
	if err = svc.throttle.Reset(ctx, username); err != nil {
		return LoginResult{}, errors.Wrap(err, "resetting login throttle")
	}
	return res, nil
}

// Refresh exchanges a refresh token for a short-lived access token carrying the account's current roles.
func (svc *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrRefreshTokenRequired
	}
	accountID, err := svc.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	roles, err := svc.repo.AccountRoles(ctx, accountID)
	if err != nil {
		return "", errors.Wrap(err, "fetching account roles")
	}
	if len(roles) == 0 {
		return "", ErrNoRoles
	}

	token, err := svc.tokens.SignAccessToken(Claims{AccountID: accountID, Roles: roles}, svc.conf.Auth.RefreshedAccessTokenTTL)
	if err != nil {
		return "", errors.Wrap(err, "signing access token")
	}
	return token, nil
}

// Status reports whether the account still exists and is active.
func (svc *Service) Status(ctx context.Context, accountID int) (bool, error) {
	acc, err := svc.repo.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acc.IsActive, nil
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, value string) (Account, error) {
	return svc.repo.GetAccountByUsernameOrEmail(ctx, core.CleanString(value, true /* lower */))
}

func (svc *Service) ResetPassword(ctx context.Context, accountID int, pwd string) error {
	var acc Account
	if err := acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdatePassword(ctx, accountID, acc.PasswordHash)
}

func (svc *Service) SetActive(ctx context.Context, accountID int, active bool) error {
	return svc.repo.SetActive(ctx, accountID, active)
}

// RevokeRole removes role from the account. Revoking a role the account does not hold is a no-op.
func (svc *Service) RevokeRole(ctx context.Context, accountID int, role string) error {
	if _, err := svc.repo.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return svc.repo.RemoveRole(ctx, accountID, role)
}

func (svc *Service) TeacherProfile(ctx context.Context, accountID int) (Teacher, error) {
	return svc.repo.GetTeacherByAccount(ctx, accountID)
}

func (svc *Service) StudentProfile(ctx context.Context, accountID int) (Student, error) {
	return svc.repo.GetStudentByAccount(ctx, accountID)
}

func (svc *Service) UpdateStudentProfile(ctx context.Context, accountID int, up UpdateProfile) (Student, error) {
	student, err := svc.repo.GetStudentByAccount(ctx, accountID)
	if err != nil {
		return Student{}, err
	}
	student.FirstName = null.StringFrom(up.FirstName)
	student.LastName = null.StringFrom(up.LastName)
	student.Document = null.StringFrom(up.Document)
	return svc.repo.UpdateStudent(ctx, student)
}

func (svc *Service) ListTeachers(ctx context.Context) ([]Teacher, error) {
	return svc.repo.ListTeachers(ctx)
}

func (svc *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return svc.repo.ListStudents(ctx)
}

func (svc *Service) sendWelcomeMail(acc Account) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: acc.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"Username": acc.Username},
	})
}
