package authz

import (
	"reflect"
	"testing"
)

func TestAllowsAdminImpliesEveryAction(t *testing.T) {
	adminOnly := Actions{Admin: true}
	for _, action := range []Action{ActionRead, ActionWrite, ActionDelete, ActionAdmin} {
		if !adminOnly.Allows(action) {
			t.Fatalf("admin should allow %s", action)
		}
	}
	if (Actions{Read: true}).Allows(ActionAdmin) {
		t.Fatalf("read alone must not allow admin")
	}
	if (Actions{}).Allows(ActionRead) {
		t.Fatalf("empty action set must not allow read")
	}
}

func TestMergeIsAdditive(t *testing.T) {
	base := ModulePermissions{
		ModuleMaterialDidatico: {Read: true, Write: true},
	}
	extra := ModulePermissions{
		ModuleMaterialDidatico: {Delete: true},
		ModuleFinanceiro:       {Read: true},
	}
	merged := base.Clone().Merge(extra)

	if !merged.Grants(ModuleMaterialDidatico, ActionRead) ||
		!merged.Grants(ModuleMaterialDidatico, ActionWrite) ||
		!merged.Grants(ModuleMaterialDidatico, ActionDelete) {
		t.Fatalf("merge dropped a previously granted action: %+v", merged)
	}
	if !merged.Grants(ModuleFinanceiro, ActionRead) {
		t.Fatalf("merge missed the new module grant")
	}
	if merged.Grants(ModuleFinanceiro, ActionWrite) {
		t.Fatalf("merge invented a write grant")
	}
}

func TestMergeCommutativeAndIdempotent(t *testing.T) {
	a := ModulePermissions{
		ModuleAgenda:      {Read: true, Write: true},
		ModuleComunicacao: {Read: true},
	}
	b := ModulePermissions{
		ModuleAgenda:   {Delete: true},
		ModuleConteudo: {Read: true},
	}

	ab := a.Clone().Merge(b)
	ba := b.Clone().Merge(a)
	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("merge order changed the result: %+v vs %+v", ab, ba)
	}

	again := ab.Clone().Merge(b)
	if !reflect.DeepEqual(ab, again) {
		t.Fatalf("re-merging the same set changed the result")
	}
}

// Admin must expand identically whether it is checked via Allows or
// materialized by a merge; the two paths drifting apart would let a
// serialized set disagree with a live check.
func TestMergeAdminImpliesAllActions(t *testing.T) {
	merged := ModulePermissions{}.Merge(ModulePermissions{
		ModuleUsuarios: {Admin: true},
	})

	got := merged[ModuleUsuarios]
	want := Actions{Read: true, Write: true, Delete: true, Admin: true}
	if got != want {
		t.Fatalf("admin did not expand on merge: got %+v", got)
	}
}

func TestNormalizedExpandsAdminAndFoldsKeys(t *testing.T) {
	raw := ModulePermissions{
		"Matrículas":   {Admin: true},
		" FINANCEIRO ": {Read: true},
	}
	normalized := raw.Normalized()

	if !normalized.Grants(ModuleMatriculas, ActionDelete) {
		t.Fatalf("expected admin on matriculas to imply delete")
	}
	if !normalized.Grants(ModuleFinanceiro, ActionRead) {
		t.Fatalf("expected financeiro key to fold to its canonical form")
	}
	if _, ok := normalized["Matrículas"]; ok {
		t.Fatalf("raw accented key survived normalization")
	}
}

func TestGrantsNormalizesLookup(t *testing.T) {
	permissions := ModulePermissions{ModuleMatriculas: {Read: true}}
	if !permissions.Grants("Matrículas", ActionRead) {
		t.Fatalf("accented module name should resolve to the same key")
	}
	if !permissions.Grants("MATRICULAS", ActionRead) {
		t.Fatalf("case should not matter for module lookup")
	}
	if permissions.Grants("matriculas", ActionWrite) {
		t.Fatalf("unexpected write grant")
	}
}

func TestGrantsOnNilSet(t *testing.T) {
	var permissions ModulePermissions
	if permissions.Grants(ModuleAgenda, ActionRead) {
		t.Fatalf("nil set must grant nothing")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := ModulePermissions{ModuleAgenda: {Read: true}}
	clone := original.Clone()
	clone[ModuleAgenda] = Actions{Read: true, Write: true}
	clone[ModuleConteudo] = Actions{Read: true}

	if original.Grants(ModuleAgenda, ActionWrite) || original.Grants(ModuleConteudo, ActionRead) {
		t.Fatalf("mutating a clone leaked into the original")
	}
}

func TestNormalizeModule(t *testing.T) {
	cases := map[string]string{
		"Matrículas":            "matriculas",
		"  material_didatico  ": "material_didatico",
		"COMUNICAÇÃO":           "comunicacao",
		"relatorios":            "relatorios",
	}
	for input, want := range cases {
		if got := NormalizeModule(input); got != want {
			t.Fatalf("NormalizeModule(%q) = %q, want %q", input, got, want)
		}
	}
}
