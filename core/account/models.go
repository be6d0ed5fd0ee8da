package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Roles
const (
	RoleAdmin   = "Administrator"
	RoleTeacher = "Teacher"
	RoleStudent = "Student"
)

// passwordCost is the bcrypt cost factor used for every stored password.
const passwordCost = 10

var AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

type Account struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login" db:"last_login"` // UTC
}

func (acc *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), passwordCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	return nil
}

func (acc *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(pwd))
}

// Profile holds the display attributes shared by teachers and students.
// Any of them may be missing: a freshly registered student only has an email.
type Profile struct {
	ID        int         `json:"id" db:"id"`
	AccountID int         `json:"account_id" db:"account_id"`
	FirstName null.String `json:"first_name" db:"first_name"`
	LastName  null.String `json:"last_name" db:"last_name"`
	Document  null.String `json:"document" db:"document"`
	Email     null.String `json:"email" db:"email"`
}

// IsComplete reports whether the profile has both names.
func (p Profile) IsComplete() bool {
	return p.FirstName.String != "" && p.LastName.String != ""
}

type (
	Teacher struct {
		Profile
	}

	Student struct {
		Profile
	}
)

// Summary is the public view of an Account.
type Summary struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// LoginResult is everything a successful login hands back to the caller.
type LoginResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Account      Summary  `json:"account"`
	Teacher      *Teacher `json:"teacher"`
	Student      *Student `json:"student"`
}

// NewAccount contains information needed to register a new student Account.
type NewAccount struct {
	Username  string `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Document  string `json:"document" validate:"omitempty,max=50"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Document = core.CleanString(na.Document)
	return validate.Struct(na)
}

// NewTeacher contains information needed to create a Teacher and their Account.
type NewTeacher struct {
	Username  string `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Document  string `json:"document" validate:"required,notblank,max=50"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.FirstName = core.CleanString(nt.FirstName)
	nt.LastName = core.CleanString(nt.LastName)
	nt.Document = core.CleanString(nt.Document)
	return validate.Struct(nt)
}

// UpdateProfile defines what a student may change on their own profile.
type UpdateProfile struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Document  string `json:"document" validate:"required,notblank,max=50"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.Document = core.CleanString(up.Document)
	return validate.Struct(up)
}
