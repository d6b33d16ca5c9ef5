package model

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Profile describes the signed-in owner as reported by the profiles table.
type Profile struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
}

// DefaultProfile is the fallback identity used when the profile row cannot
// be resolved in time. It always carries the regular user role.
func DefaultProfile(ownerID string) Profile {
	return Profile{ID: ownerID, Role: RoleUser}
}
