package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	tokensvc "github.com/trezcool/academia/services/token"
)

// NewConfig returns the configuration shared by tests. It does not read the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:  "Academia",
		Env:      "TEST",
		TestMode: true,
		Auth: core.AuthConfig{
			Issuer:                  "academia-test",
			AccessKey:               "test-access-key",
			RefreshKey:              "test-refresh-key",
			AccessTokenTTL:          2 * time.Hour,
			RefreshedAccessTokenTTL: 15 * time.Minute,
			RefreshTokenTTL:         7 * 24 * time.Hour,
			MaxLoginAttempts:        5,
			LoginAttemptWindow:      15 * time.Minute,
		},
		Mail: core.MailConfig{DefaultFromEmail: "noreply@academia.test"},
	}
}

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	uname, pwd string,
	isActive bool,
	roles ...string,
) account.Account {
	ctx := context.Background()
	now := time.Now().UTC()
	acc := account.Account{
		Username:  uname,
		Email:     uname + "@academia.test",
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(ctx, acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	for _, role := range roles {
		roleID, err := repo.GetRoleID(ctx, role)
		if err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
		if err = repo.AddRole(ctx, acc.ID, roleID); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	return acc
}

func profile(acc account.Account, firstName, lastName string) account.Profile {
	return account.Profile{
		AccountID: acc.ID,
		FirstName: null.NewString(firstName, firstName != ""),
		LastName:  null.NewString(lastName, lastName != ""),
		Document:  null.NewString("DOC-"+acc.Username, firstName != ""),
		Email:     null.StringFrom(acc.Email),
	}
}

// CreateTeacher creates an active account with the Teacher role and its profile.
func CreateTeacher(t *testing.T, repo account.Repository, uname, pwd, firstName, lastName string) (account.Account, account.Teacher) {
	acc := CreateAccount(t, repo, uname, pwd, true, account.RoleTeacher)
	teacher, err := repo.CreateTeacher(context.Background(), account.Teacher{Profile: profile(acc, firstName, lastName)})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return acc, teacher
}

// CreateStudent creates an active account with the Student role and its profile.
// Empty names leave the profile incomplete.
func CreateStudent(t *testing.T, repo account.Repository, uname, pwd, firstName, lastName string) (account.Account, account.Student) {
	acc := CreateAccount(t, repo, uname, pwd, true, account.RoleStudent)
	student, err := repo.CreateStudent(context.Background(), account.Student{Profile: profile(acc, firstName, lastName)})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return acc, student
}

// CreateCourse creates a subject and a course of it taught by teacherID.
func CreateCourse(t *testing.T, repo course.Repository, teacherID int, subjectName, period string) course.Course {
	ctx := context.Background()
	subj, err := repo.CreateSubject(ctx, course.Subject{Name: subjectName})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	c, err := repo.CreateCourse(ctx, course.Course{SubjectID: subj.ID, TeacherID: teacherID, Period: period})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo course.Repository, courseID, studentID int) {
	if _, err := repo.Enroll(context.Background(), courseID, studentID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// CreateBlock creates an evaluation block, configured only when weights is not nil.
func CreateBlock(t *testing.T, repo grade.Repository, name string, weights *grade.Weights) grade.Block {
	ctx := context.Background()
	b, err := repo.CreateBlock(ctx, grade.Block{Name: name})
	if err != nil {
		t.Fatalf("CreateBlock() failed: %v", err)
	}
	if weights != nil {
		if err = repo.SetWeights(ctx, b.ID, *weights); err != nil {
			t.Fatalf("CreateBlock() failed: %v", err)
		}
		b.Weights = weights
	}
	return b
}

func Float(f float64) *float64 { return &f }

// ParseAccessToken verifies an access token signed with conf's access key and returns its claims.
func ParseAccessToken(t *testing.T, conf *core.Config, ss string) *tokensvc.AccessClaims {
	t.Helper()
	claims := new(tokensvc.AccessClaims)
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(conf.Auth.AccessKey), nil }
	if _, err := jwt.ParseWithClaims(ss, claims, keyFunc); err != nil {
		t.Fatalf("ParseAccessToken() failed: %v", err)
	}
	return claims
}
