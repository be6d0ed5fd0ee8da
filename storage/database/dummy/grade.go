package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

// block returns the block with its weights. Callers must hold the lock.
func (repo *gradeRepository) block(id int) (grade.Block, bool) {
	name, ok := repo.db.t.blocks[id]
	if !ok {
		return grade.Block{}, false
	}
	b := grade.Block{ID: id, Name: name}
	if w, ok := repo.db.t.weights[id]; ok {
		b.Weights = &w
	}
	return b, true
}

func (repo *gradeRepository) CreateBlock(_ context.Context, b grade.Block, _ ...core.DBExecutor) (grade.Block, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, name := range repo.db.t.blocks {
		if name == b.Name {
			return grade.Block{}, grade.ErrBlockExists
		}
	}
	b.ID = repo.db.t.nextID("evaluation_block")
	repo.db.t.blocks[b.ID] = b.Name
	return b, nil
}

func (repo *gradeRepository) GetBlock(_ context.Context, id int, _ ...core.DBExecutor) (grade.Block, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.block(id); ok {
		return b, nil
	}
	return grade.Block{}, grade.ErrBlockNotFound
}

func (repo *gradeRepository) ListBlocks(_ context.Context, _ ...core.DBExecutor) ([]grade.Block, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	blocks := make([]grade.Block, 0, len(repo.db.t.blocks))
	for id := range repo.db.t.blocks {
		b, _ := repo.block(id)
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return blocks, nil
}

func (repo *gradeRepository) SetWeights(_ context.Context, blockID int, w grade.Weights, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.blocks[blockID]; !ok {
		return grade.ErrBlockNotFound
	}
	repo.db.t.weights[blockID] = w
	return nil
}

func (repo *gradeRepository) GetWeights(_ context.Context, blockID int, _ ...core.DBExecutor) (*grade.Weights, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if w, ok := repo.db.t.weights[blockID]; ok {
		return &w, nil
	}
	return nil, nil
}

func (repo *gradeRepository) UpsertGrade(_ context.Context, g grade.Grade, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	key := gradeKey{studentID: g.StudentID, courseID: g.CourseID, blockID: g.BlockID}
	if old, ok := repo.db.t.grades[key]; ok {
		g.ID, g.CreatedAt = old.ID, old.CreatedAt
	} else {
		g.ID = repo.db.t.nextID("grade")
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	g.Verdict = ""
	repo.db.t.grades[key] = g
	return g, nil
}

func (repo *gradeRepository) CourseGrades(_ context.Context, studentID, courseID int, _ ...core.DBExecutor) ([]grade.BlockGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]grade.BlockGrade, 0)
	for key, g := range repo.db.t.grades {
		if key.studentID == studentID && key.courseID == courseID {
			grades = append(grades, grade.BlockGrade{Grade: g, BlockName: repo.db.t.blocks[g.BlockID]})
		}
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].BlockID < grades[j].BlockID })
	return grades, nil
}

func (repo *gradeRepository) StudentGrades(_ context.Context, studentID int, _ ...core.DBExecutor) ([]grade.StudentGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]grade.StudentGrade, 0)
	for key, g := range repo.db.t.grades {
		if key.studentID != studentID {
			continue
		}
		c := repo.db.t.courses[g.CourseID]
		grades = append(grades, grade.StudentGrade{
			BlockGrade:  grade.BlockGrade{Grade: g, BlockName: repo.db.t.blocks[g.BlockID]},
			SubjectName: repo.db.t.subjects[c.SubjectID].Name,
			Period:      c.Period,
		})
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].CourseID != grades[j].CourseID {
			return grades[i].CourseID < grades[j].CourseID
		}
		return grades[i].BlockID < grades[j].BlockID
	})
	return grades, nil
}
