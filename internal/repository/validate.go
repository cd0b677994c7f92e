package repository

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/pkg/types"
)

// row is a validated tuple ready to bind.
type row struct {
	fullName  string
	birthDate time.Time
	gender    types.Gender
}

// validate coerces a tuple into typed values. index is the tuple's position
// in a batch, or -1 for a single insert.
func validate(op string, index int, t types.Tuple) (row, error) {
	where := ""
	if index >= 0 {
		where = fmt.Sprintf("tuple %d: ", index)
	}

	if strings.TrimSpace(t.FullName) == "" {
		return row{}, apperrors.NewValidationError(apperrors.CodeEmptyName, op,
			where+"full name is empty", types.ErrEmptyName)
	}

	date, err := types.ParseBirthDate(t.BirthDate)
	if err != nil {
		return row{}, apperrors.NewValidationError(apperrors.CodeInvalidDate, op,
			fmt.Sprintf("%sbirth date %q of %q must be YYYY-MM-DD", where, t.BirthDate, t.FullName), err)
	}

	gender, err := types.ParseGender(t.Gender)
	if err != nil {
		return row{}, apperrors.NewValidationError(apperrors.CodeInvalidGender, op,
			fmt.Sprintf("%sgender %q of %q must be Male or Female", where, t.Gender, t.FullName), err)
	}

	return row{fullName: t.FullName, birthDate: date, gender: gender}, nil
}

// dateScanner reads a DATE column regardless of how the driver surfaces it:
// time.Time (pgx, mysql parseTime, mattn on DATE columns) or text.
type dateScanner struct {
	dst *time.Time
}

func (s dateScanner) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*s.dst = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		return fmt.Errorf("birth date is NULL")
	default:
		return fmt.Errorf("unsupported birth date type %T", src)
	}
}

func (s dateScanner) parse(v string) error {
	// Drivers that store time.Time as text append a time part
	if len(v) > 10 && v[4] == '-' && v[7] == '-' {
		v = v[:10]
	}
	t, err := types.ParseBirthDate(v)
	if err != nil {
		return err
	}
	*s.dst = t
	return nil
}
