package sheets

import (
	"errors"
	"io/fs"
	"testing"
)

func TestReadFailureWrapsCause(t *testing.T) {
	f := ReadFailure{Name: "a.xlsx", Err: fs.ErrPermission}
	if !errors.Is(f, fs.ErrPermission) {
		t.Fatalf("expected wrapped permission error")
	}
	if f.Error() != "a.xlsx: permission denied" {
		t.Fatalf("unexpected message %q", f.Error())
	}
}
