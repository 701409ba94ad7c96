package identity

// Roles
const (
	RoleTeacher   Role = "teacher"
	RolePrincipal Role = "principal"
)

var Roles = []Role{RoleTeacher, RolePrincipal}

type Role string

// CookieName is the name of the cookie carrying the role's identity token.
func (r Role) CookieName() string {
	return string(r) + "Id"
}

// MarkerName is the name of the companion cookie telling the frontend a session exists.
func (r Role) MarkerName() string {
	return string(r) + "Found"
}

// LoginPath is where the frontend lets the role log in.
func (r Role) LoginPath() string {
	switch r {
	case RolePrincipal:
		return "/Principal/login"
	default:
		return "/Teacher/login"
	}
}

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RolePrincipal
}

// Identity is the recovered caller: a teacher's external ID (e.g. TCH4F9A2B) or a principal's ID.
type Identity struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}
