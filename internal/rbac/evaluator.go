package rbac

// HasPermission decides whether the holder of profile and grants may
// perform action on module. A missing profile denies everything, admins are
// allowed everything, and everyone else needs the matching grant flag.
func HasPermission(profile *Profile, grants []Grant, module Module, action Action) bool {
	if profile == nil {
		return false
	}
	if profile.Role == RoleAdmin {
		return true
	}
	for _, g := range grants {
		if g.Module == module {
			return g.Allows(action)
		}
	}
	return false
}

// Matrix is the evaluated permission table of one principal.
type Matrix map[Module]map[Action]bool

// Evaluate builds the full module/action matrix for profile and grants.
func Evaluate(profile *Profile, grants []Grant) Matrix {
	matrix := make(Matrix, len(Modules()))
	for _, m := range Modules() {
		row := make(map[Action]bool, len(Actions()))
		for _, a := range Actions() {
			row[a] = HasPermission(profile, grants, m, a)
		}
		matrix[m] = row
	}
	return matrix
}
