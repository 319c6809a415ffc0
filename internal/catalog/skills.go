// Package catalog holds the static skill and network catalogues and builds
// the canonical payment-requirements objects for priced skills.
package catalog

// Skill ids exposed by the gateway.
const (
	SkillScreenshot     = "screenshot"
	SkillMarkdownToPDF  = "markdown-to-pdf"
	SkillMarkdownToHTML = "markdown-to-html"
	SkillAIAnalysis     = "ai-analysis"
)

// Skill is one unit of service: name, price in atomic stablecoin units
// (6 decimals, 10000 = $0.01) and the media types it consumes and produces.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceAtomic uint64   `json:"priceAtomic"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
}

// RequiresPayment reports whether the skill is priced.
func (s Skill) RequiresPayment() bool { return s.PriceAtomic > 0 }

// Skills is the static catalogue, in display order.
var Skills = []Skill{
	{
		ID:          SkillScreenshot,
		Name:        "Website Screenshot",
		Description: "Capture a full-page screenshot of any public URL.",
		PriceAtomic: 10000,
		InputModes:  []string{"text/plain"},
		OutputModes: []string{"image/png"},
	},
	{
		ID:          SkillMarkdownToPDF,
		Name:        "Markdown to PDF",
		Description: "Render markdown into a downloadable PDF document.",
		PriceAtomic: 5000,
		InputModes:  []string{"text/markdown", "text/plain"},
		OutputModes: []string{"application/pdf"},
	},
	{
		ID:          SkillAIAnalysis,
		Name:        "AI Text Analysis",
		Description: "Summarize or analyze text with an AI model.",
		PriceAtomic: 20000,
		InputModes:  []string{"text/plain"},
		OutputModes: []string{"text/plain", "application/json"},
	},
	{
		ID:          SkillMarkdownToHTML,
		Name:        "Markdown to HTML",
		Description: "Render markdown into HTML. Free.",
		PriceAtomic: 0,
		InputModes:  []string{"text/markdown", "text/plain"},
		OutputModes: []string{"text/html"},
	},
}

// SkillByID looks a skill up by id.
func SkillByID(id string) (Skill, bool) {
	for _, s := range Skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// PricedSkills returns the skills that require payment, in catalogue order.
func PricedSkills() []Skill {
	out := make([]Skill, 0, len(Skills))
	for _, s := range Skills {
		if s.RequiresPayment() {
			out = append(out, s)
		}
	}
	return out
}
