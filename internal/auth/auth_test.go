package auth

import (
	"testing"
	"time"
)

func TestResolutionGate(t *testing.T) {
	s := NewState()
	select {
	case <-s.Resolved():
		t.Fatal("state should not be resolved before Set")
	default:
	}
	if s.Current() != nil {
		t.Error("unresolved state should have no user")
	}

	s.Set(&User{ID: "u1"})
	select {
	case <-s.Resolved():
	case <-time.After(time.Second):
		t.Fatal("Set should resolve the state")
	}
	if got := s.Current(); got == nil || got.ID != "u1" {
		t.Errorf("Current = %v", got)
	}
}

func TestSignOutResolvesToo(t *testing.T) {
	s := NewState()
	s.Set(nil)
	select {
	case <-s.Resolved():
	default:
		t.Fatal("sign-out still counts as resolution")
	}
	if s.Current() != nil {
		t.Error("expected nil user after sign-out")
	}
}

func TestChangesCoalesceToLatest(t *testing.T) {
	s := NewState()
	s.Set(&User{ID: "a"})
	s.Set(&User{ID: "b"})
	s.Set(nil)

	select {
	case u := <-s.Changes():
		if u != nil {
			t.Errorf("coalesced change = %v, want nil (latest)", u)
		}
	default:
		t.Fatal("expected a pending change")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("secret", "author-1")

	u, ok := r.Lookup("secret")
	if !ok || u.ID != "author-1" {
		t.Errorf("Lookup = %v %v", u, ok)
	}
	if _, ok := r.Lookup("wrong"); ok {
		t.Error("unknown token should not resolve")
	}
}
