package rbac

import "testing"

func TestHasCapabilityMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		role       Role
		capability Capability
		want       bool
	}{
		{
			name:       "user views console",
			role:       RoleUser,
			capability: CapConsoleView,
			want:       true,
		},
		{
			name:       "no access role sees nothing",
			role:       RoleNone,
			capability: CapConsoleView,
			want:       false,
		},
		{
			name:       "user cannot delete videos",
			role:       RoleUser,
			capability: CapVideosDelete,
			want:       false,
		},
		{
			name:       "admin deletes videos",
			role:       RoleAdmin,
			capability: CapVideosDelete,
			want:       true,
		},
		{
			name:       "admin cannot manage every library entry",
			role:       RoleAdmin,
			capability: CapVideosManage,
			want:       false,
		},
		{
			name:       "super admin manages every library entry",
			role:       RoleSuperAdmin,
			capability: CapVideosManage,
			want:       true,
		},
		{
			name:       "unlimited tier inherits everything",
			role:       RoleUnlimited,
			capability: CapAccountsManage,
			want:       true,
		},
		{
			name:       "undefined capability denied",
			role:       RoleUnlimited,
			capability: Capability("made.up"),
			want:       false,
		},
		{
			name:       "unknown role grants nothing",
			role:       Role("9"),
			capability: CapVideosBrowse,
			want:       false,
		},
		{
			name:       "empty capability defaults to visible",
			role:       RoleNone,
			capability: Capability(""),
			want:       true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasCapability(tc.role, tc.capability); got != tc.want {
				t.Fatalf("HasCapability(%q, %q) = %v, want %v", tc.role, tc.capability, got, tc.want)
			}
		})
	}
}

func TestCapabilitiesFor(t *testing.T) {
	t.Parallel()

	caps := CapabilitiesFor(RoleAdmin)
	if !caps[CapVideosDelete] {
		t.Fatalf("admin should have CapVideosDelete")
	}
	if caps[CapVideosManage] {
		t.Fatalf("admin must not have CapVideosManage")
	}
	if len(CapabilitiesFor(RoleNone)) != 0 {
		t.Fatalf("no access role should not hold capabilities")
	}
}

func TestNormaliseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"":    RoleNone,
		" 2 ": RoleAdmin,
		"04":  RoleUnlimited,
		"x":   RoleNone,
		"7":   RoleNone,
	}
	for raw, want := range cases {
		if got := NormaliseRole(raw); got != want {
			t.Fatalf("NormaliseRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRoleLabel(t *testing.T) {
	t.Parallel()

	if RoleSuperAdmin.Label() != "Super admin" {
		t.Fatalf("unexpected label %q", RoleSuperAdmin.Label())
	}
}
