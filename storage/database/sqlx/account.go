package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/storage/database"
)

const (
	accountColumns = "id, username, email, password_hash, is_active, created_at, updated_at, last_login"
	profileColumns = "id, account_id, first_name, last_name, document, email"
)

type accountRepository struct {
	repository
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *database.DB) account.Repository {
	return &accountRepository{repository{db: db}}
}

func (repo *accountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM account WHERE username = $1 OR email = $2)"
	err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, username, email)
	return exists, err
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	q := `INSERT INTO account (username, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := sqlx.GetContext(ctx, repo.getExec(exec), &acc.ID, q,
		acc.Username, acc.Email, acc.PasswordHash, acc.IsActive, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return account.Account{}, trapConstraintErr(err, account.ErrAccountExists, nil)
	}
	return acc, nil
}

func (repo *accountRepository) getAccount(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) (account.Account, error) {
	var acc account.Account
	q := "SELECT " + accountColumns + " FROM account WHERE " + where + " LIMIT 1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &acc, q, args...); err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound)
	}
	return acc, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, id int, exec ...core.DBExecutor) (account.Account, error) {
	return repo.getAccount(ctx, exec, "id = $1", id)
}

func (repo *accountRepository) GetActiveAccountByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (account.Account, error) {
	return repo.getAccount(ctx, exec, "username = $1 AND is_active", username)
}

func (repo *accountRepository) GetAccountByUsernameOrEmail(ctx context.Context, value string, exec ...core.DBExecutor) (account.Account, error) {
	return repo.getAccount(ctx, exec, "username = $1 OR email = $1", value)
}

func (repo *accountRepository) UpdatePassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error {
	q := "UPDATE account SET password_hash = $2, updated_at = now() WHERE id = $1"
	res, err := repo.getExec(exec).ExecContext(ctx, q, id, hash)
	return requireAffected(res, err, account.ErrNotFound)
}

func (repo *accountRepository) SetActive(ctx context.Context, id int, active bool, exec ...core.DBExecutor) error {
	q := "UPDATE account SET is_active = $2, updated_at = now() WHERE id = $1"
	res, err := repo.getExec(exec).ExecContext(ctx, q, id, active)
	return requireAffected(res, err, account.ErrNotFound)
}

func (repo *accountRepository) SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	q := "UPDATE account SET last_login = $2 WHERE id = $1"
	res, err := repo.getExec(exec).ExecContext(ctx, q, id, at)
	return requireAffected(res, err, account.ErrNotFound)
}

func (repo *accountRepository) GetRoleID(ctx context.Context, name string, exec ...core.DBExecutor) (int, error) {
	var id int
	err := sqlx.GetContext(ctx, repo.getExec(exec), &id, "SELECT id FROM role WHERE name = $1", name)
	return id, trapNoRowsErr(err, account.ErrRoleNotFound)
}

func (repo *accountRepository) AddRole(ctx context.Context, accountID, roleID int, exec ...core.DBExecutor) error {
	q := "INSERT INTO account_role (account_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := repo.getExec(exec).ExecContext(ctx, q, accountID, roleID)
	return trapConstraintErr(err, nil, account.ErrNotFound)
}

func (repo *accountRepository) RemoveRole(ctx context.Context, accountID int, role string, exec ...core.DBExecutor) error {
	q := `DELETE FROM account_role ar
		USING role r
		WHERE ar.role_id = r.id AND ar.account_id = $1 AND r.name = $2`
	_, err := repo.getExec(exec).ExecContext(ctx, q, accountID, role)
	return err
}

func (repo *accountRepository) AccountRoles(ctx context.Context, accountID int, exec ...core.DBExecutor) ([]string, error) {
	roles := make([]string, 0, len(account.AllRoles))
	q := `SELECT r.name FROM role r
		JOIN account_role ar ON ar.role_id = r.id
		WHERE ar.account_id = $1
		ORDER BY r.name`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &roles, q, accountID); err != nil {
		return nil, err
	}
	return roles, nil
}

func (repo *accountRepository) createProfile(ctx context.Context, exec []core.DBExecutor, table string, p *account.Profile) error {
	q := "INSERT INTO " + table + ` (account_id, first_name, last_name, document, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := sqlx.GetContext(ctx, repo.getExec(exec), &p.ID, q, p.AccountID, p.FirstName, p.LastName, p.Document, p.Email)
	return trapConstraintErr(err, account.ErrAccountExists, account.ErrNotFound)
}

func (repo *accountRepository) getProfile(ctx context.Context, exec []core.DBExecutor, table, where string, arg int) (account.Profile, error) {
	var p account.Profile
	q := "SELECT " + profileColumns + " FROM " + table + " WHERE " + where
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &p, q, arg); err != nil {
		return account.Profile{}, trapNoRowsErr(err, account.ErrProfileNotFound)
	}
	return p, nil
}

func (repo *accountRepository) listProfiles(ctx context.Context, exec []core.DBExecutor, table string) ([]account.Profile, error) {
	profiles := make([]account.Profile, 0)
	q := "SELECT " + profileColumns + " FROM " + table + " ORDER BY last_name, first_name, id"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &profiles, q); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (repo *accountRepository) CreateTeacher(ctx context.Context, t account.Teacher, exec ...core.DBExecutor) (account.Teacher, error) {
	if err := repo.createProfile(ctx, exec, "teacher", &t.Profile); err != nil {
		return account.Teacher{}, err
	}
	return t, nil
}

func (repo *accountRepository) GetTeacher(ctx context.Context, id int, exec ...core.DBExecutor) (account.Teacher, error) {
	p, err := repo.getProfile(ctx, exec, "teacher", "id = $1", id)
	return account.Teacher{Profile: p}, err
}

func (repo *accountRepository) GetTeacherByAccount(ctx context.Context, accountID int, exec ...core.DBExecutor) (account.Teacher, error) {
	p, err := repo.getProfile(ctx, exec, "teacher", "account_id = $1", accountID)
	return account.Teacher{Profile: p}, err
}

func (repo *accountRepository) ListTeachers(ctx context.Context, exec ...core.DBExecutor) ([]account.Teacher, error) {
	profiles, err := repo.listProfiles(ctx, exec, "teacher")
	if err != nil {
		return nil, err
	}
	teachers := make([]account.Teacher, 0, len(profiles))
	for _, p := range profiles {
		teachers = append(teachers, account.Teacher{Profile: p})
	}
	return teachers, nil
}

func (repo *accountRepository) CreateStudent(ctx context.Context, s account.Student, exec ...core.DBExecutor) (account.Student, error) {
	if err := repo.createProfile(ctx, exec, "student", &s.Profile); err != nil {
		return account.Student{}, err
	}
	return s, nil
}

func (repo *accountRepository) GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (account.Student, error) {
	p, err := repo.getProfile(ctx, exec, "student", "id = $1", id)
	return account.Student{Profile: p}, err
}

func (repo *accountRepository) GetStudentByAccount(ctx context.Context, accountID int, exec ...core.DBExecutor) (account.Student, error) {
	p, err := repo.getProfile(ctx, exec, "student", "account_id = $1", accountID)
	return account.Student{Profile: p}, err
}

func (repo *accountRepository) UpdateStudent(ctx context.Context, s account.Student, exec ...core.DBExecutor) (account.Student, error) {
	q := "UPDATE student SET first_name = $2, last_name = $3, document = $4 WHERE id = $1"
	res, err := repo.getExec(exec).ExecContext(ctx, q, s.ID, s.FirstName, s.LastName, s.Document)
	if err = requireAffected(res, err, account.ErrProfileNotFound); err != nil {
		return account.Student{}, errors.Wrap(err, "updating student")
	}
	return s, nil
}

func (repo *accountRepository) ListStudents(ctx context.Context, exec ...core.DBExecutor) ([]account.Student, error) {
	profiles, err := repo.listProfiles(ctx, exec, "student")
	if err != nil {
		return nil, err
	}
	students := make([]account.Student, 0, len(profiles))
	for _, p := range profiles {
		students = append(students, account.Student{Profile: p})
	}
	return students, nil
}
