package subcmd

import (
	"errors"
	"reflect"
	"testing"

	"github.com/memorydaemon/krep/internal/options"
)

type stubCmd struct {
	Base
}

func (c *stubCmd) Execute(*Session, *options.Values, []string) error { return nil }

func newStub(name string) *stubCmd {
	return &stubCmd{Base: Base{CmdName: name, Help: name + " help"}}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(newStub("repo"))
	r.Register(newStub("batch"))
	r.Register(newStub("help"))

	d, ok := r.Lookup("repo")
	if !ok {
		t.Fatal("repo should resolve")
	}
	if d.Name() != "repo" {
		t.Errorf("name = %q, want repo", d.Name())
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("unknown name must report absence")
	}

	want := []string{"batch", "help", "repo"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic")
		}
	}()

	r := NewRegistry()
	r.Register(newStub("repo"))
	r.Register(newStub("repo"))
}

func TestRegistry_EmptyNamePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("empty name should panic")
		}
	}()

	NewRegistry().Register(newStub(""))
}

func TestBase_DisplayName(t *testing.T) {
	t.Parallel()

	b := Base{CmdName: "repo"}

	if got := b.DisplayName(nil); got != "repo" {
		t.Errorf("DisplayName(nil) = %q, want repo", got)
	}

	vals := options.New()
	if got := b.DisplayName(vals); got != "repo" {
		t.Errorf("DisplayName(empty) = %q, want repo", got)
	}

	vals.Set("name", "platform/build")
	if got := b.DisplayName(vals); got != "platform/build" {
		t.Errorf("DisplayName = %q, want platform/build", got)
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection refused")
	err := &Error{Kind: Download, Msg: "fetch manifest", Err: inner}

	if got := err.Error(); got != "fetch manifest: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("wrapped cause should unwrap")
	}

	bare := &Error{Kind: Processing, Err: inner}
	if got := bare.Error(); got != "connection refused" {
		t.Errorf("Error() = %q, want bare cause", got)
	}
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := Errorf(Processing, "failed to import %d of %d projects", 2, 10)
	if err.Kind != Processing {
		t.Errorf("kind = %v, want Processing", err.Kind)
	}
	if got := err.Error(); got != "failed to import 2 of 10 projects" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRequireOption(t *testing.T) {
	t.Parallel()

	if err := RequireOption(true, "unused"); err != nil {
		t.Errorf("err = %v, want nil", err)
	}

	err := RequireOption(false, "manifest url (--manifest-url) is not set")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatal("should return the recoverable error type")
	}
	if cerr.Kind != OptionMissed {
		t.Errorf("kind = %v, want OptionMissed", cerr.Kind)
	}
}
