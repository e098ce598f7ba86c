package roles

import "testing"

func TestAdminCanAddAndRemoveModerator(t *testing.T) {
	s := NewStore()
	if err := s.AddAdmin("", "admin", true); err != nil {
		t.Fatalf("bootstrap add admin: %v", err)
	}

	if err := s.AddModerator("admin", "mod", false); err != nil {
		t.Fatalf("AddModerator: %v", err)
	}
	if !s.IsModerator("mod") {
		t.Error("expected mod to be a moderator")
	}

	if err := s.RemoveModerator("admin", "mod", false); err != nil {
		t.Fatalf("RemoveModerator: %v", err)
	}
	if s.IsModerator("mod") {
		t.Error("expected mod to no longer be a moderator")
	}
}

func TestNonAdminCannotMutateRoles(t *testing.T) {
	s := NewStore()
	if err := s.AddModerator("stranger", "mod", false); err == nil {
		t.Error("expected NotAllowed for a non-admin caller")
	}
	if err := s.AddAdmin("stranger", "newadmin", false); err == nil {
		t.Error("expected NotAllowed for a non-admin caller")
	}
}

func TestAdminCanRemoveSelfAndEmptyTheSet(t *testing.T) {
	s := NewStore()
	if err := s.AddAdmin("", "admin", true); err != nil {
		t.Fatalf("bootstrap add admin: %v", err)
	}
	if err := s.RemoveAdmin("admin", "admin", false); err != nil {
		t.Fatalf("admin should be able to remove itself: %v", err)
	}
	if s.IsAdmin("admin") {
		t.Error("expected admin set to no longer contain admin")
	}
	if len(s.ListAdmins()) != 0 {
		t.Error("expected admin set to be empty")
	}
}

func TestListAdminsIsSorted(t *testing.T) {
	s := NewStore()
	_ = s.AddAdmin("", "zeta", true)
	_ = s.AddAdmin("", "alpha", true)
	_ = s.AddAdmin("", "mike", true)

	got := s.ListAdmins()
	want := []string{"alpha", "mike", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
