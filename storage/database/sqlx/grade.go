package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/storage/database"
)

const (
	gradeColumns = "g.id, g.student_id, g.course_id, g.block_id, g.quiz_score, g.midterm_score, g.project_score, " +
		"g.weighted_average, g.created_at, g.updated_at"

	blockQuery = `SELECT b.id, b.name, w.quiz_pct, w.midterm_pct, w.project_pct
	FROM evaluation_block b
	LEFT JOIN block_weights w ON w.block_id = b.id`
)

// blockRow is an evaluation block left-joined with its (maybe missing) weights.
type blockRow struct {
	ID         int          `db:"id"`
	Name       string       `db:"name"`
	QuizPct    null.Float64 `db:"quiz_pct"`
	MidtermPct null.Float64 `db:"midterm_pct"`
	ProjectPct null.Float64 `db:"project_pct"`
}

func (row blockRow) block() grade.Block {
	b := grade.Block{ID: row.ID, Name: row.Name}
	if row.QuizPct.Valid && row.MidtermPct.Valid && row.ProjectPct.Valid {
		b.Weights = &grade.Weights{
			Quiz:    row.QuizPct.Float64,
			Midterm: row.MidtermPct.Float64,
			Project: row.ProjectPct.Float64,
		}
	}
	return b
}

type gradeRepository struct {
	repository
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *database.DB) grade.Repository {
	return &gradeRepository{repository{db: db}}
}

func (repo *gradeRepository) CreateBlock(ctx context.Context, b grade.Block, exec ...core.DBExecutor) (grade.Block, error) {
	q := "INSERT INTO evaluation_block (name) VALUES ($1) RETURNING id"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &b.ID, q, b.Name); err != nil {
		return grade.Block{}, trapConstraintErr(err, grade.ErrBlockExists, nil)
	}
	return b, nil
}

func (repo *gradeRepository) GetBlock(ctx context.Context, id int, exec ...core.DBExecutor) (grade.Block, error) {
	var row blockRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, blockQuery+" WHERE b.id = $1", id); err != nil {
		return grade.Block{}, trapNoRowsErr(err, grade.ErrBlockNotFound)
	}
	return row.block(), nil
}

func (repo *gradeRepository) ListBlocks(ctx context.Context, exec ...core.DBExecutor) ([]grade.Block, error) {
	var rows []blockRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, blockQuery+" ORDER BY b.id"); err != nil {
		return nil, err
	}
	blocks := make([]grade.Block, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, row.block())
	}
	return blocks, nil
}

func (repo *gradeRepository) SetWeights(ctx context.Context, blockID int, w grade.Weights, exec ...core.DBExecutor) error {
	q := `INSERT INTO block_weights (block_id, quiz_pct, midterm_pct, project_pct)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (block_id) DO UPDATE SET
			quiz_pct = EXCLUDED.quiz_pct,
			midterm_pct = EXCLUDED.midterm_pct,
			project_pct = EXCLUDED.project_pct`
	_, err := repo.getExec(exec).ExecContext(ctx, q, blockID, w.Quiz, w.Midterm, w.Project)
	return trapConstraintErr(err, nil, grade.ErrBlockNotFound)
}

func (repo *gradeRepository) GetWeights(ctx context.Context, blockID int, exec ...core.DBExecutor) (*grade.Weights, error) {
	var w grade.Weights
	q := "SELECT quiz_pct, midterm_pct, project_pct FROM block_weights WHERE block_id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &w, q, blockID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// UpsertGrade relies on the (student_id, course_id, block_id) unique constraint:
// concurrent writes on the same key resolve to the last one.
func (repo *gradeRepository) UpsertGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	q := `INSERT INTO grade AS g (student_id, course_id, block_id, quiz_score, midterm_score, project_score, weighted_average)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, course_id, block_id) DO UPDATE SET
			quiz_score = EXCLUDED.quiz_score,
			midterm_score = EXCLUDED.midterm_score,
			project_score = EXCLUDED.project_score,
			weighted_average = EXCLUDED.weighted_average,
			updated_at = now()
		RETURNING ` + gradeColumns

	var saved grade.Grade
	err := sqlx.GetContext(ctx, repo.getExec(exec), &saved, q,
		g.StudentID, g.CourseID, g.BlockID, g.Quiz, g.Midterm, g.Project, g.WeightedAverage)
	if err != nil {
		return grade.Grade{}, err
	}
	return saved, nil
}

func (repo *gradeRepository) CourseGrades(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) ([]grade.BlockGrade, error) {
	grades := make([]grade.BlockGrade, 0)
	q := "SELECT " + gradeColumns + `, b.name AS block_name
		FROM grade g
		JOIN evaluation_block b ON b.id = g.block_id
		WHERE g.student_id = $1 AND g.course_id = $2
		ORDER BY b.id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &grades, q, studentID, courseID); err != nil {
		return nil, err
	}
	return grades, nil
}

func (repo *gradeRepository) StudentGrades(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]grade.StudentGrade, error) {
	grades := make([]grade.StudentGrade, 0)
	q := "SELECT " + gradeColumns + `, b.name AS block_name, s.name AS subject_name, c.period
		FROM grade g
		JOIN evaluation_block b ON b.id = g.block_id
		JOIN course c ON c.id = g.course_id
		JOIN subject s ON s.id = c.subject_id
		WHERE g.student_id = $1
		ORDER BY c.id, b.id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &grades, q, studentID); err != nil {
		return nil, err
	}
	return grades, nil
}
