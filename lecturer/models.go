package lecturer

import (
	"strings"
	"time"
)

// Profile captures the lecturer data exposed via the API layer.
type Profile struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	EmployeeID string
	Department string
	IsActive   bool
	DateJoined time.Time
}

func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Filters narrow the lecturer directory.
type Filters struct {
	Department string
	ActiveOnly bool
	Limit      int
}

// UpdateParams carries the HR-editable fields; nil leaves a field unchanged.
type UpdateParams struct {
	Department *string
	EmployeeID *string
	IsActive   *bool
}

func (p UpdateParams) empty() bool {
	return p.Department == nil && p.EmployeeID == nil && p.IsActive == nil
}
