package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) ExistsByUsernameOrEmail(_ context.Context, username, email string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, acc := range repo.db.t.accounts {
		if acc.Username == username || acc.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, a := range repo.db.t.accounts {
		if a.Username == acc.Username || a.Email == acc.Email {
			return account.Account{}, account.ErrAccountExists
		}
	}
	acc.ID = repo.db.t.nextID("account")
	repo.db.t.accounts[acc.ID] = acc
	return acc, nil
}

func (repo *accountRepository) find(match func(acc account.Account) bool) (account.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, acc := range repo.db.t.accounts {
		if match(acc) {
			return acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccount(_ context.Context, id int, _ ...core.DBExecutor) (account.Account, error) {
	return repo.find(func(acc account.Account) bool { return acc.ID == id })
}

func (repo *accountRepository) GetActiveAccountByUsername(_ context.Context, username string, _ ...core.DBExecutor) (account.Account, error) {
	return repo.find(func(acc account.Account) bool { return acc.Username == username && acc.IsActive })
}

func (repo *accountRepository) GetAccountByUsernameOrEmail(_ context.Context, value string, _ ...core.DBExecutor) (account.Account, error) {
	return repo.find(func(acc account.Account) bool { return acc.Username == value || acc.Email == value })
}

func (repo *accountRepository) update(id int, fn func(acc *account.Account)) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	acc, ok := repo.db.t.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	fn(&acc)
	repo.db.t.accounts[id] = acc
	return nil
}

func (repo *accountRepository) UpdatePassword(_ context.Context, id int, hash []byte, _ ...core.DBExecutor) error {
	return repo.update(id, func(acc *account.Account) {
		acc.PasswordHash = hash
		acc.UpdatedAt = time.Now().UTC()
	})
}

func (repo *accountRepository) SetActive(_ context.Context, id int, active bool, _ ...core.DBExecutor) error {
	return repo.update(id, func(acc *account.Account) {
		acc.IsActive = active
		acc.UpdatedAt = time.Now().UTC()
	})
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id int, at time.Time, _ ...core.DBExecutor) error {
	return repo.update(id, func(acc *account.Account) {
		acc.LastLogin.SetValid(at)
	})
}

func (repo *accountRepository) GetRoleID(_ context.Context, name string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for id, role := range repo.db.t.roles {
		if role == name {
			return id, nil
		}
	}
	return 0, account.ErrRoleNotFound
}

func (repo *accountRepository) AddRole(_ context.Context, accountID, roleID int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.accounts[accountID]; !ok {
		return account.ErrNotFound
	}
	if _, ok := repo.db.t.roles[roleID]; !ok {
		return account.ErrRoleNotFound
	}
	set, ok := repo.db.t.accountRoles[accountID]
	if !ok {
		set = make(map[int]bool)
		repo.db.t.accountRoles[accountID] = set
	}
	set[roleID] = true
	return nil
}

func (repo *accountRepository) RemoveRole(_ context.Context, accountID int, role string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for roleID := range repo.db.t.accountRoles[accountID] {
		if repo.db.t.roles[roleID] == role {
			delete(repo.db.t.accountRoles[accountID], roleID)
		}
	}
	return nil
}

func (repo *accountRepository) AccountRoles(_ context.Context, accountID int, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roles := make([]string, 0, len(account.AllRoles))
	for roleID := range repo.db.t.accountRoles[accountID] {
		roles = append(roles, repo.db.t.roles[roleID])
	}
	sort.Strings(roles)
	return roles, nil
}

func sortProfiles(profiles []account.Profile) {
	sort.Slice(profiles, func(i, j int) bool {
		pi, pj := profiles[i], profiles[j]
		if pi.LastName.String != pj.LastName.String {
			return pi.LastName.String < pj.LastName.String
		}
		if pi.FirstName.String != pj.FirstName.String {
			return pi.FirstName.String < pj.FirstName.String
		}
		return pi.ID < pj.ID
	})
}

func (repo *accountRepository) CreateTeacher(_ context.Context, t account.Teacher, _ ...core.DBExecutor) (account.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.accounts[t.AccountID]; !ok {
		return account.Teacher{}, account.ErrNotFound
	}
	for _, other := range repo.db.t.teachers {
		if other.AccountID == t.AccountID {
			return account.Teacher{}, account.ErrAccountExists
		}
	}
	t.ID = repo.db.t.nextID("teacher")
	repo.db.t.teachers[t.ID] = t
	return t, nil
}

func (repo *accountRepository) GetTeacher(_ context.Context, id int, _ ...core.DBExecutor) (account.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.t.teachers[id]; ok {
		return t, nil
	}
	return account.Teacher{}, account.ErrProfileNotFound
}

func (repo *accountRepository) GetTeacherByAccount(_ context.Context, accountID int, _ ...core.DBExecutor) (account.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, t := range repo.db.t.teachers {
		if t.AccountID == accountID {
			return t, nil
		}
	}
	return account.Teacher{}, account.ErrProfileNotFound
}

func (repo *accountRepository) ListTeachers(_ context.Context, _ ...core.DBExecutor) ([]account.Teacher, error) {
	repo.db.mu.RLock()
	profiles := make([]account.Profile, 0, len(repo.db.t.teachers))
	for _, t := range repo.db.t.teachers {
		profiles = append(profiles, t.Profile)
	}
	repo.db.mu.RUnlock()

	sortProfiles(profiles)
	teachers := make([]account.Teacher, 0, len(profiles))
	for _, p := range profiles {
		teachers = append(teachers, account.Teacher{Profile: p})
	}
	return teachers, nil
}

func (repo *accountRepository) CreateStudent(_ context.Context, s account.Student, _ ...core.DBExecutor) (account.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.accounts[s.AccountID]; !ok {
		return account.Student{}, account.ErrNotFound
	}
	for _, other := range repo.db.t.students {
		if other.AccountID == s.AccountID {
			return account.Student{}, account.ErrAccountExists
		}
	}
	s.ID = repo.db.t.nextID("student")
	repo.db.t.students[s.ID] = s
	return s, nil
}

func (repo *accountRepository) GetStudent(_ context.Context, id int, _ ...core.DBExecutor) (account.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.t.students[id]; ok {
		return s, nil
	}
	return account.Student{}, account.ErrProfileNotFound
}

func (repo *accountRepository) GetStudentByAccount(_ context.Context, accountID int, _ ...core.DBExecutor) (account.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.t.students {
		if s.AccountID == accountID {
			return s, nil
		}
	}
	return account.Student{}, account.ErrProfileNotFound
}

func (repo *accountRepository) UpdateStudent(_ context.Context, s account.Student, _ ...core.DBExecutor) (account.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.t.students[s.ID]
	if !ok {
		return account.Student{}, account.ErrProfileNotFound
	}
	old.FirstName, old.LastName, old.Document = s.FirstName, s.LastName, s.Document
	repo.db.t.students[s.ID] = old
	return old, nil
}

func (repo *accountRepository) ListStudents(_ context.Context, _ ...core.DBExecutor) ([]account.Student, error) {
	repo.db.mu.RLock()
	profiles := make([]account.Profile, 0, len(repo.db.t.students))
	for _, s := range repo.db.t.students {
		profiles = append(profiles, s.Profile)
	}
	repo.db.mu.RUnlock()

	sortProfiles(profiles)
	students := make([]account.Student, 0, len(profiles))
	for _, p := range profiles {
		students = append(students, account.Student{Profile: p})
	}
	return students, nil
}
