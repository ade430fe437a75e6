package models

type UserRole string

const (
	RoleTestTaker UserRole = "test_taker"
	RoleGrader    UserRole = "grader"
	RoleAdmin     UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleTestTaker, RoleGrader, RoleAdmin:
		return true
	}
	return false
}

// CanGrade is true for roles allowed to submit human grades.
func (r UserRole) CanGrade() bool {
	return r == RoleGrader || r == RoleAdmin
}
