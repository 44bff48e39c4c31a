package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ACLAdmin marks an account with unrestricted scope. Any other non-empty acl
// value is a department-code prefix granting supervisor scope over that
// department subtree.
const ACLAdmin = "admin"

// Identity describes the authenticated caller as resolved from the employee
// table. Authentication itself happens upstream; the engine only enforces
// scope.
type Identity struct {
	UID      uuid.UUID
	Username string
	ACL      string
}

// IsAdmin reports unrestricted scope.
func (i Identity) IsAdmin() bool { return i.ACL == ACLAdmin }

// Supervises reports supervisor scope over the department code.
func (i Identity) Supervises(department string) bool {
	if i.ACL == "" || i.ACL == ACLAdmin {
		return false
	}
	return strings.HasPrefix(department, i.ACL)
}
