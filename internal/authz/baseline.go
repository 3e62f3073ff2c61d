package authz

// Platform modules against which permissions are granted.
const (
	ModuleMatriculas       = "matriculas"
	ModuleFinanceiro       = "financeiro"
	ModuleMaterialDidatico = "material_didatico"
	ModuleComunicacao      = "comunicacao"
	ModuleRelatorios       = "relatorios"
	ModuleUsuarios         = "usuarios"
	ModuleAgenda           = "agenda"
	ModuleConteudo         = "conteudo"
)

var (
	readOnly  = Actions{Read: true}
	readWrite = Actions{Read: true, Write: true}
	full      = Actions{Read: true, Write: true, Delete: true}
	adminAll  = Actions{Read: true, Write: true, Delete: true, Admin: true}
)

// baselines holds the least permissive defaults per role level. Every
// extra permission must come from an explicitly assigned dynamic role.
var baselines = map[RoleLevel]ModulePermissions{
	RoleSuperAdmin: {
		ModuleMatriculas:       adminAll,
		ModuleFinanceiro:       adminAll,
		ModuleMaterialDidatico: adminAll,
		ModuleComunicacao:      adminAll,
		ModuleRelatorios:       adminAll,
		ModuleUsuarios:         adminAll,
		ModuleAgenda:           adminAll,
		ModuleConteudo:         adminAll,
	},
	RoleInstitutionAdmin: {
		ModuleMatriculas:       full,
		ModuleFinanceiro:       full,
		ModuleMaterialDidatico: full,
		ModuleComunicacao:      full,
		ModuleRelatorios:       readWrite,
		ModuleUsuarios:         full,
		ModuleAgenda:           full,
		ModuleConteudo:         full,
	},
	RoleCoordinator: {
		ModuleMatriculas:       readWrite,
		ModuleMaterialDidatico: full,
		ModuleComunicacao:      readWrite,
		ModuleRelatorios:       readOnly,
		ModuleAgenda:           readWrite,
		ModuleConteudo:         readWrite,
	},
	RoleTeacher: {
		ModuleMaterialDidatico: readWrite,
		ModuleComunicacao:      readWrite,
		ModuleAgenda:           readWrite,
		ModuleConteudo:         readOnly,
	},
	RoleSecretary: {
		ModuleMatriculas:  readWrite,
		ModuleComunicacao: readWrite,
		ModuleAgenda:      readWrite,
	},
	RoleFinancial: {
		ModuleFinanceiro: full,
		ModuleRelatorios: readOnly,
	},
	RoleStudent: {
		ModuleMaterialDidatico: readOnly,
		ModuleComunicacao:      readOnly,
		ModuleAgenda:           readOnly,
		ModuleConteudo:         readOnly,
	},
	RoleParent: {
		ModuleFinanceiro:  readOnly,
		ModuleComunicacao: readOnly,
		ModuleAgenda:      readOnly,
	},
}

// Baseline returns the permission set implied solely by the role level.
// Total over RoleLevel: an unknown level yields the empty set rather
// than an error. The result is always a fresh copy.
func Baseline(role RoleLevel) ModulePermissions {
	base, ok := baselines[role]
	if !ok {
		return ModulePermissions{}
	}
	return base.Clone()
}
