package schema

import "testing"

func buildSample(t *testing.T) *Spec {
	t.Helper()
	b := NewBuilder()
	obj := b.AddClass("object", "")
	b.AddVariable(obj, "x", TypeU16)
	b.AddVariable(obj, "y", TypeU16)

	player := b.AddClass("player", "object")
	b.AddVariable(player, "name", TypeString)

	move := b.AddMethod("move")
	b.AddArgument(move, "dx", TypeU8)
	b.AddArgument(move, "dy", TypeU8)

	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return spec
}

func TestInheritancePrefix(t *testing.T) {
	spec := buildSample(t)

	player, ok := spec.Class("player")
	if !ok {
		t.Fatal("player class not found")
	}
	if len(player.Variables) != 3 {
		t.Fatalf("player.Variables = %d, want 3", len(player.Variables))
	}
	if player.Variables[0].Name != "x" || player.Variables[1].Name != "y" {
		t.Fatalf("player's inherited prefix is wrong: %+v", player.Variables)
	}
	if player.NumOwnVariables() != 1 {
		t.Fatalf("player.NumOwnVariables() = %d, want 1", player.NumOwnVariables())
	}

	obj, _ := spec.Class("object")
	if !player.IsA(obj) {
		t.Fatal("player should be-a object")
	}
	if obj.IsA(player) {
		t.Fatal("object should not be-a player")
	}
}

func TestOrdinalsAreDenseAndStable(t *testing.T) {
	spec := buildSample(t)

	obj, _ := spec.Class("object")
	player, _ := spec.Class("player")
	if obj.Ordinal != 0 || player.Ordinal != 1 {
		t.Fatalf("unexpected ordinals: object=%d player=%d", obj.Ordinal, player.Ordinal)
	}

	byOrd, ok := spec.ClassByOrdinal(1)
	if !ok || byOrd != player {
		t.Fatal("ClassByOrdinal(1) should return player")
	}
	if _, ok := spec.ClassByOrdinal(2); ok {
		t.Fatal("ClassByOrdinal(2) should not exist")
	}
}

func TestHashStableAcrossEquivalentBuilds(t *testing.T) {
	spec1 := buildSample(t)
	spec2 := buildSample(t)
	if spec1.Hash() != spec2.Hash() {
		t.Fatalf("identical schemas hashed differently: %d vs %d", spec1.Hash(), spec2.Hash())
	}
}

func TestHashChangesWithSchema(t *testing.T) {
	spec1 := buildSample(t)

	b := NewBuilder()
	obj := b.AddClass("object", "")
	b.AddVariable(obj, "x", TypeU16)
	b.AddVariable(obj, "y", TypeU32) // different type than buildSample
	spec2, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if spec1.Hash() == spec2.Hash() {
		t.Fatal("differing schemas should not hash the same")
	}
}

func TestDuplicateClassNameFails(t *testing.T) {
	b := NewBuilder()
	b.AddClass("object", "")
	b.AddClass("object", "")
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for duplicate class name")
	}
}

func TestUnknownParentFails(t *testing.T) {
	b := NewBuilder()
	b.AddClass("player", "object")
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for unknown parent")
	}
}

func TestMethodArguments(t *testing.T) {
	spec := buildSample(t)

	move, ok := spec.Method("move")
	if !ok {
		t.Fatal("move method not found")
	}
	dx, ok := move.Argument("dx")
	if !ok || dx.Ordinal != 0 {
		t.Fatalf("dx argument wrong: %+v ok=%v", dx, ok)
	}
	if _, ok := move.Argument("dz"); ok {
		t.Fatal("dz should not exist")
	}

	byOrd, ok := spec.MethodByOrdinal(0)
	if !ok || byOrd != move {
		t.Fatal("MethodByOrdinal(0) should return move")
	}
}
