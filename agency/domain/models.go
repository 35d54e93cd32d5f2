package domain

import "time"

// Role separates the platform operator from regular tenants.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAgency     Role = "agency"
)

// Agency is a tenant: the unit of data isolation.
type Agency struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"is_active"`
	Code         string    `json:"code,omitempty"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Logo         []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicProfile is what the join-by-code flow exposes: never credentials,
// never the logo blob, never internal flags.
type PublicProfile struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func (a *Agency) Public() PublicProfile {
	return PublicProfile{
		ID:      a.ID,
		Name:    a.Name,
		Code:    a.Code,
		Address: a.Address,
		Phone:   a.Phone,
	}
}

func (a *Agency) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}
