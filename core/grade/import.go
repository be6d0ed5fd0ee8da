package grade

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
)

// ImportColumns is the header row expected in a grades spreadsheet.
var ImportColumns = []string{"student_id", "block_id", "quiz", "midterm", "project"}

var errBadHeader = core.NewValidationError(nil, core.FieldError{
	Field: "file",
	Error: "the first row must be: " + strings.Join(ImportColumns, ", "),
})

// Import records every row of the first sheet of an xlsx workbook as a grade of the course.
// A row that cannot be recorded is reported in its ImportResult and does not stop the others.
// Rows are saved one at a time: an internal error stops the import, and the results of the
// rows handled before it are returned along with the error.
func (svc *Service) Import(ctx context.Context, courseID int, r io.Reader) ([]ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "file", Error: "not a valid xlsx workbook"})
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errBadHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	if len(rows) == 0 || !isImportHeader(rows[0]) {
		return nil, errBadHeader
	}

	results := make([]ImportResult, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		res := ImportResult{Row: i + 2} // 1-based, after the header

		ng, err := parseImportRow(courseID, row)
		if err == nil {
			var g Grade
			if g, err = svc.Record(ctx, ng); err == nil {
				res.Grade = &g
			}
		}
		if err != nil {
			if core.KindOf(err) == core.KindInternal {
				return results, errors.Wrapf(err, "importing row %d", res.Row)
			}
			res.Error = rowErrorText(err)
		}
		results = append(results, res)
	}
	return results, nil
}

func isImportHeader(row []string) bool {
	if len(row) < len(ImportColumns) {
		return false
	}
	for i, col := range ImportColumns {
		if core.CleanString(row[i], true /* lower */) != col {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseImportRow(courseID int, row []string) (NewGrade, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	ng := NewGrade{CourseID: courseID}

	var err error
	if ng.StudentID, err = strconv.Atoi(cell(0)); err != nil {
		return NewGrade{}, invalidCell(ImportColumns[0])
	}
	if ng.BlockID, err = strconv.Atoi(cell(1)); err != nil {
		return NewGrade{}, invalidCell(ImportColumns[1])
	}
	scores := []**float64{&ng.Quiz, &ng.Midterm, &ng.Project}
	for j, dst := range scores {
		val, err := strconv.ParseFloat(cell(j+2), 64)
		if err != nil {
			return NewGrade{}, invalidCell(ImportColumns[j+2])
		}
		*dst = &val
	}
	return ng, nil
}

func invalidCell(col string) error {
	return core.NewValidationError(nil, core.FieldError{Field: col, Error: "not a valid number"})
}

func rowErrorText(err error) string {
	if verrs, ok := errors.Cause(err).(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s: failed on '%s'", fe.Field(), fe.Tag())
	}
	return errors.Cause(err).Error()
}
