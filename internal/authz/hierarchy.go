package authz

// hierarchy is the precomputed role containment relation: each level
// maps to the set of levels it satisfies, itself included. Staff levels
// contain the levels whose capabilities they supervise; student and
// parent stand alone.
var hierarchy = map[RoleLevel]map[RoleLevel]struct{}{
	RoleSuperAdmin: roleSet(
		RoleSuperAdmin, RoleInstitutionAdmin, RoleCoordinator, RoleTeacher,
		RoleSecretary, RoleFinancial, RoleStudent, RoleParent,
	),
	RoleInstitutionAdmin: roleSet(
		RoleInstitutionAdmin, RoleCoordinator, RoleTeacher, RoleSecretary, RoleFinancial,
	),
	RoleCoordinator: roleSet(RoleCoordinator, RoleTeacher),
	RoleTeacher:     roleSet(RoleTeacher),
	RoleSecretary:   roleSet(RoleSecretary),
	RoleFinancial:   roleSet(RoleFinancial),
	RoleStudent:     roleSet(RoleStudent),
	RoleParent:      roleSet(RoleParent),
}

func roleSet(levels ...RoleLevel) map[RoleLevel]struct{} {
	set := make(map[RoleLevel]struct{}, len(levels))
	for _, level := range levels {
		set[level] = struct{}{}
	}
	return set
}

// Satisfies reports whether actual meets a check for required, i.e.
// required is contained in actual's implied set. An unknown actual
// level satisfies nothing.
func Satisfies(actual, required RoleLevel) bool {
	implied, ok := hierarchy[actual]
	if !ok {
		return false
	}
	_, ok = implied[required]
	return ok
}
