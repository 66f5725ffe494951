package store

import (
	"context"
	"testing"
)

func TestIdentityRegistered(t *testing.T) {
	cases := []struct {
		name string
		id   Identity
		want bool
	}{
		{"pending placeholder", Identity{ClockifyUserID: "u1", Email: "a@b.c"}, false},
		{"registered", Identity{ClockifyUserID: "u1", APIKey: "k", Email: "a@b.c"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.id.Registered(); got != tc.want {
				t.Fatalf("Registered() = %v, want %v", got, tc.want)
			}
		})
	}
}

// Empty-handle guards must fire before any query runs; a nil handle would
// otherwise match or rewrite every pending row, whose tg_username is empty.
func TestIdentitiesRejectEmptyHandle(t *testing.T) {
	s := NewIdentities(nil)
	ctx := context.Background()

	id, found, err := s.FindByHandle(ctx, "")
	if err != nil {
		t.Fatalf("FindByHandle(\"\") error: %v", err)
	}
	if found || id != (Identity{}) {
		t.Fatalf("FindByHandle(\"\") = %+v, found=%v, want no match", id, found)
	}

	if err := s.UpdateCredentialByHandle(ctx, "", "key"); err == nil {
		t.Fatal("UpdateCredentialByHandle accepted empty handle")
	}
	if err := s.UpdateCredentialAndHandleByEmail(ctx, "a@b.c", "", ""); err == nil {
		t.Fatal("UpdateCredentialAndHandleByEmail accepted empty handle")
	}
}
