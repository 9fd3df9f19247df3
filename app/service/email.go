package service

import (
	"strings"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

// InferRoleFromEmail maps an email to a namespace the way accounts created
// before explicit role selection were mapped: any address containing "emp"
// belongs to an employer.
func InferRoleFromEmail(email string) entity.Role {
	if strings.Contains(email, "emp") {
		return entity.RoleEmployer
	}
	return entity.RoleStudent
}

func usernameFromEmail(email string) string {
	return strings.SplitN(email, "@", 2)[0]
}
