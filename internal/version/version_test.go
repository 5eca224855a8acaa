package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "bobinbox "+Version) {
		t.Fatalf("String() = %q", s)
	}
}
