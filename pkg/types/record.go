// Package types provides the core data types for empbench.
package types

import "time"

// Gender is the enumerated gender domain of an employee record.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// Genders returns the gender domain in declaration order.
func Genders() []Gender {
	return []Gender{Male, Female}
}

// Valid reports whether g belongs to the gender domain.
func (g Gender) Valid() bool {
	return g == Male || g == Female
}

// ParseGender converts s to a Gender. Matching is exact; "male" is rejected.
func ParseGender(s string) (Gender, error) {
	g := Gender(s)
	if !g.Valid() {
		return "", ErrInvalidGender
	}
	return g, nil
}

// Employee is a persisted record of the employees table.
type Employee struct {
	// ID is assigned by the store on insert and never reused
	ID int64 `json:"id"`

	// FullName is "<first> <surname> <surname>"
	FullName string `json:"full_name"`

	// BirthDate is a calendar date at UTC midnight
	BirthDate time.Time `json:"birth_date"`

	Gender Gender `json:"gender"`
}

// Age returns the employee's age in whole years as of asOf.
func (e Employee) Age(asOf time.Time) int {
	return Age(e.BirthDate, asOf)
}

// Tuple is one generated record in its textual form, as consumed by bulk insert.
type Tuple struct {
	FullName  string
	BirthDate string
	Gender    string
}

// Batch is an ordered sequence of tuples held in memory between generation
// and bulk insertion.
type Batch []Tuple
