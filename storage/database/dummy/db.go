package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
)

type (
	// DB is an in-memory store with the same semantics as the SQL one, for tests.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		t    tables
	}

	enrollmentKey struct {
		courseID  int
		studentID int
	}

	gradeKey struct {
		studentID int
		courseID  int
		blockID   int
	}

	tables struct {
		seq          map[string]int
		accounts     map[int]account.Account
		roles        map[int]string
		accountRoles map[int]map[int]bool // {accountID: {roleID}}
		teachers     map[int]account.Teacher
		students     map[int]account.Student
		subjects     map[int]course.Subject
		courses      map[int]course.Course
		enrollments  map[enrollmentKey]time.Time
		blocks       map[int]string
		weights      map[int]grade.Weights
		grades       map[gradeKey]grade.Grade
	}

	Option func(db *DB)
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

// WithoutRoles opens the DB without the seeded roles, as if migrations never ran.
func WithoutRoles() Option {
	return func(db *DB) {
		db.t.roles = make(map[int]string)
	}
}

func Open(opts ...Option) *DB {
	db := &DB{t: tables{
		seq:          make(map[string]int),
		accounts:     make(map[int]account.Account),
		roles:        make(map[int]string),
		accountRoles: make(map[int]map[int]bool),
		teachers:     make(map[int]account.Teacher),
		students:     make(map[int]account.Student),
		subjects:     make(map[int]course.Subject),
		courses:      make(map[int]course.Course),
		enrollments:  make(map[enrollmentKey]time.Time),
		blocks:       make(map[int]string),
		weights:      make(map[int]grade.Weights),
		grades:       make(map[gradeKey]grade.Grade),
	}}
	for _, name := range account.AllRoles {
		id := db.t.nextID("role")
		db.t.roles[id] = name
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) Close() error { return nil }

// InTx snapshots every table and restores them if fn fails. Transactions run one at a time.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	defer func() {
		p := recover()
		if err != nil || p != nil {
			db.mu.Lock()
			db.t = snapshot
			db.mu.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()
	return fn(nil)
}

// AccountCount returns the number of stored accounts.
func (db *DB) AccountCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.t.accounts)
}

func (t *tables) nextID(table string) int {
	t.seq[table]++
	return t.seq[table]
}

func (t tables) clone() tables {
	c := tables{
		seq:          make(map[string]int, len(t.seq)),
		accounts:     make(map[int]account.Account, len(t.accounts)),
		roles:        make(map[int]string, len(t.roles)),
		accountRoles: make(map[int]map[int]bool, len(t.accountRoles)),
		teachers:     make(map[int]account.Teacher, len(t.teachers)),
		students:     make(map[int]account.Student, len(t.students)),
		subjects:     make(map[int]course.Subject, len(t.subjects)),
		courses:      make(map[int]course.Course, len(t.courses)),
		enrollments:  make(map[enrollmentKey]time.Time, len(t.enrollments)),
		blocks:       make(map[int]string, len(t.blocks)),
		weights:      make(map[int]grade.Weights, len(t.weights)),
		grades:       make(map[gradeKey]grade.Grade, len(t.grades)),
	}
	for k, v := range t.seq {
		c.seq[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.roles {
		c.roles[k] = v
	}
	for k, v := range t.accountRoles {
		set := make(map[int]bool, len(v))
		for r := range v {
			set[r] = true
		}
		c.accountRoles[k] = set
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.blocks {
		c.blocks[k] = v
	}
	for k, v := range t.weights {
		c.weights[k] = v
	}
	for k, v := range t.grades {
		c.grades[k] = v
	}
	return c
}
