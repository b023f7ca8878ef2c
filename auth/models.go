package auth

import (
	"strings"
	"time"

	"claimflow/claim"
)

type Role string

const (
	RoleLecturer             Role = "Lecturer"
	RoleProgrammeCoordinator Role = "ProgrammeCoordinator"
	RoleAcademicManager      Role = "AcademicManager"
	RoleHR                   Role = "HR"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	EmployeeID   string
	Department   string
	Role         Role
	IsActive     bool
	DateJoined   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	EmployeeID string `json:"employee_id"`
	Department string `json:"department"`
	Role       Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID     string
	Name       string
	Role       Role
	Department string
}

// Actor is the identity as recorded in claim history.
func (i Identity) Actor() claim.Actor {
	return claim.Actor{ID: i.UserID, Name: i.Name}
}

// Scope limits which claims the identity may see. Lecturers see their own
// claims, coordinators their department, managers and HR everything.
func (i Identity) Scope() claim.Scope {
	switch i.Role {
	case RoleLecturer:
		return claim.Scope{LecturerID: i.UserID}
	case RoleProgrammeCoordinator:
		return claim.Scope{Department: i.Department}
	default:
		return claim.Scope{}
	}
}

// CanReview reports whether the identity may move claims through the lifecycle.
func (i Identity) CanReview() bool {
	switch i.Role {
	case RoleProgrammeCoordinator, RoleAcademicManager, RoleHR:
		return true
	default:
		return false
	}
}
