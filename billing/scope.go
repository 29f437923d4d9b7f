package billing

// Scope is the request-scoped view of who is asking. Student callers are
// Restricted to their own StudentID; operators are not restricted.
type Scope struct {
	UserID     int64
	StudentID  int64
	Restricted bool
}

// Unrestricted is the scope of background jobs and operators.
var Unrestricted = Scope{}

// Resolve returns the student id a read should use. A restricted caller
// that omits the id gets their own; asking for someone else is forbidden.
// An unrestricted caller must name a student.
func (s Scope) Resolve(requested int64) (int64, error) {
	if s.Restricted {
		if requested == 0 || requested == s.StudentID {
			return s.StudentID, nil
		}
		return 0, &AuthorizationError{Message: "Access denied"}
	}
	if requested <= 0 {
		return 0, Invalid("student_id", "Student ID required")
	}
	return requested, nil
}

// Allows reports whether the scope may see data of studentID.
func (s Scope) Allows(studentID int64) bool {
	return !s.Restricted || s.StudentID == studentID
}
