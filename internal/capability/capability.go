// Package capability decides which requested capabilities a trust total unlocks.
package capability

// Basic is granted to every agent and is the default request.
const Basic = "basic"

// DefaultThreshold applies to capabilities missing from Thresholds.
const DefaultThreshold = 750

// Thresholds is the minimum total trust score for each known capability.
var Thresholds = map[string]int{
	Basic:          0,
	"read":         400,
	"file_read":    500,
	"network":      600,
	"external_api": 650,
	"write":        600,
	"file_write":   700,
	"execute":      750,
	"delegate":     850,
	"system":       900,
	"admin":        950,
	"financial":    900,
}

// Required returns the minimum total needed for name.
func Required(name string) int {
	if t, ok := Thresholds[name]; ok {
		return t
	}
	return DefaultThreshold
}

// Grant filters requested down to the capabilities total satisfies. Each
// capability is decided on its own and request order is kept. An empty
// request is treated as ["basic"].
func Grant(total int, requested []string) []string {
	if len(requested) == 0 {
		requested = []string{Basic}
	}
	granted := make([]string, 0, len(requested))
	for _, name := range requested {
		if total >= Required(name) {
			granted = append(granted, name)
		}
	}
	return granted
}
