package domain

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// StoredUser carries the persisted credential material and never crosses the
// HTTP boundary.
type StoredUser struct {
	User
	Salt         string
	PasswordHash string
}
