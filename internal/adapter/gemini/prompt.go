package gemini

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
)

// BuildPrompt renders the analysis prompt for req. Equal requests always
// produce byte-identical prompts.
func BuildPrompt(req domain.ReasoningRequest) string {
	var b strings.Builder
	b.WriteString("You are an environmental data analyst. Analyze this CO2 concentration anomaly:\n\n")
	b.WriteString("Location: " + num(req.Latitude) + "°N, " + num(req.Longitude) + "°E\n")
	b.WriteString("CO2 Concentration: " + num(req.Value) + " ppm\n")
	b.WriteString("Deviation from baseline: " + num(req.Deviation) + " ppm\n")
	b.WriteString("Severity: " + req.Severity.Label() + "\n")
	b.WriteString("Z-Score: " + num(req.ZScore) + "\n")
	b.WriteString("Observation Date: " + req.TimeLabel + "\n\n")
	b.WriteString("Provide a concise analysis (2-3 sentences) explaining possible causes of this CO2 anomaly. Consider:\n")
	b.WriteString("- Nearby industrial activities\n")
	b.WriteString("- Urban density and traffic patterns\n")
	b.WriteString("- Seasonal factors\n")
	b.WriteString("- Geographic features\n")
	b.WriteString("- Weather patterns\n\n")
	b.WriteString("Focus on the most likely causes based on the location and severity.")
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
