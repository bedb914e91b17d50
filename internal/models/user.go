package models

// Role is the authenticated principal's role
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleDriver     Role = "driver"
	RoleOrgAdmin   Role = "org_admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleOrgAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role may act on requests it does not own
func (r Role) IsAdmin() bool {
	return r == RoleOrgAdmin || r == RoleSuperAdmin
}

// Principal is the identity resolved from a bearer token
type Principal struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	OrgID string `json:"orgId,omitempty"`
}

// OrgRef returns the principal's org as a nullable column value
func (p Principal) OrgRef() *string {
	if p.OrgID == "" {
		return nil
	}
	org := p.OrgID
	return &org
}
