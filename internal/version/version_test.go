package version

import "testing"

func TestString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "1.2.3"

	want := "gaitd 1.2.3 (" + GitSHA + ", built " + BuildTime + ")"
	if got := String("gaitd"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
