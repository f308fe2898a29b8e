// Package models contains the TRAZIO domain types shared by the client layers.
package models

// Role is fixed once onboarding completes.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticated account as returned by /auth/me.
type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Role             Role     `json:"role"`
	ProfileCompleted bool     `json:"profileCompleted"`
	Username         string   `json:"username,omitempty"`
	Avatar           string   `json:"avatar,omitempty"`
	Bio              string   `json:"bio,omitempty"`
	University       string   `json:"university,omitempty"`
	Career           string   `json:"career,omitempty"`
	Semester         int      `json:"semester,omitempty"`
	Department       string   `json:"department,omitempty"`
	Title            string   `json:"title,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	Interests        []string `json:"interests,omitempty"`
}

// IsTeacher reports whether the user may highlight posts.
func (u *User) IsTeacher() bool {
	return u != nil && u.Role == RoleTeacher
}

// Summary returns the compact author form embedded in posts and comments.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
}

// UserSummary is the author reference carried by posts and comments.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Subject is a course a student takes or a teacher teaches.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}
