package model

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	PasswordHash    string   `json:"-"`
	FullName        string   `json:"full_name"`
	Role            UserRole `json:"role"`
	TokensRemaining int64    `json:"tokens_remaining"`
	Active          bool     `json:"active"`
	Ctime           int64    `json:"ctime"`
	Mtime           int64    `json:"mtime"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
