package pharmacy

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// USERS AND ROLES
// =============================================================================

type Role string

const (
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RolePharmacist:
		return r, nil
	}
	return "", invalid("role", fmt.Sprintf("%q is not one of admin, pharmacist", s))
}

// User holds a bcrypt hash, never the plain password.
type User struct {
	Username     string
	PasswordHash string
	Role         Role
}

// NewUser validates the credentials and hashes the password.
func NewUser(username, password string, role Role) (User, error) {
	if username == "" {
		return User{}, invalid("username", "is required")
	}
	if password == "" {
		return User{}, invalid("password", "is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return User{Username: username, PasswordHash: string(hash), Role: role}, nil
}

func (u User) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u User) validate() error {
	if u.Username == "" {
		return invalid("username", "is required")
	}
	if u.PasswordHash == "" {
		return invalid("password", "is required")
	}
	_, err := ParseRole(string(u.Role))
	return err
}

// =============================================================================
// PERMISSIONS - What each role may do
// =============================================================================

type Permission string

const (
	PermViewMedicines       Permission = "view medicines"
	PermManageMedicines     Permission = "manage medicines"
	PermManageUsers         Permission = "manage users"
	PermViewReports         Permission = "view reports"
	PermManagePrescriptions Permission = "manage prescriptions"
	PermFulfill             Permission = "fulfill prescriptions"
	PermBill                Permission = "bill prescriptions"
	PermViewTransactions    Permission = "view transactions"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermViewMedicines,
		PermManageMedicines,
		PermManageUsers,
		PermViewReports,
		PermViewTransactions,
	},
	RolePharmacist: {
		PermViewMedicines,
		PermManagePrescriptions,
		PermFulfill,
		PermBill,
		PermViewTransactions,
	},
}

// Permits reports whether role holds perm.
func Permits(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Authorize is Permits as an error.
func Authorize(role Role, perm Permission) error {
	if !Permits(role, perm) {
		return &ForbiddenError{Role: role, Permission: perm}
	}
	return nil
}
