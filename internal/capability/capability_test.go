package capability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGrant(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		requested []string
		want      []string
	}{
		{"score 700 mixed", 700, []string{"basic", "read", "write", "execute"}, []string{"basic", "read", "write"}},
		{"empty request", 0, nil, []string{"basic"}},
		{"order preserved", 1000, []string{"admin", "read", "basic"}, []string{"admin", "read", "basic"}},
		{"unknown below default", 749, []string{"teleport"}, []string{}},
		{"unknown at default", 750, []string{"teleport"}, []string{"teleport"}},
		{"independent per capability", 900, []string{"admin", "system", "financial"}, []string{"system", "financial"}},
		{"untrusted keeps basic", 10, []string{"basic", "read"}, []string{"basic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grant(tt.total, tt.requested)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Grant mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequired(t *testing.T) {
	if Required("file_write") != 700 {
		t.Errorf("Expected 700, got %d", Required("file_write"))
	}
	if Required("external_api") != 650 {
		t.Errorf("Expected 650, got %d", Required("external_api"))
	}
	if Required("nope") != DefaultThreshold {
		t.Errorf("Expected default threshold, got %d", Required("nope"))
	}
}
