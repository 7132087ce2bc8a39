package trust

// RecommendationThreshold is the dimension value below which advice is given.
const RecommendationThreshold = 70

var advisories = []struct {
	dim  Dimension
	text string
}{
	{PolicyCompliance, "Improve policy compliance by following AgentMesh governance guidelines"},
	{ResourceEfficiency, "Optimize resource usage to improve efficiency score"},
	{OutputQuality, "Focus on output quality and accuracy"},
	{SecurityPosture, "Enhance security practices and complete security handshakes"},
	{CollaborationHealth, "Engage in more successful inter-agent handshakes"},
}

// MaintainAdvice is returned when no dimension is weak.
const MaintainAdvice = "Maintain current practices to keep your excellent trust score"

// Recommendations returns one advisory per weak dimension in canonical order.
func Recommendations(s Score) []string {
	var out []string
	for _, a := range advisories {
		if s.dims.Get(a.dim) < RecommendationThreshold {
			out = append(out, a.text)
		}
	}
	if len(out) == 0 {
		out = append(out, MaintainAdvice)
	}
	return out
}
