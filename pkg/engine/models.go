package engine

// ModelInfo describes one model the engine can answer as.
type ModelInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
	Status       string   `json:"status"`
}

// DefaultModel is used when a request names no model or an unknown one.
const DefaultModel = "quantum-ai"

var catalog = []ModelInfo{
	{
		ID:          "quantum-ai",
		Name:        "Quantum AI",
		Description: "Advanced quantum-enhanced AI model with superior reasoning",
		Capabilities: []string{
			"Natural language understanding",
			"Code generation and analysis",
			"Mathematical computations",
			"Multi-language support",
			"Context-aware responses",
			"Real-time information retrieval",
		},
		Version: "1.0.0",
		Status:  "active",
	},
	{
		ID:          "quantum-pro",
		Name:        "Quantum Pro",
		Description: "Professional-grade AI with enhanced capabilities",
		Capabilities: []string{
			"All Quantum AI features",
			"Advanced data analysis",
			"Document processing",
			"Image understanding",
			"Complex reasoning",
			"Custom plugin support",
		},
		Version: "1.0.0",
		Status:  "active",
	},
}

// Models returns the catalog of supported models.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ResolveModel maps a requested model id onto a catalog entry, falling back
// to the default model for empty or unknown ids.
func ResolveModel(id string) ModelInfo {
	for _, m := range catalog {
		if m.ID == id {
			return m
		}
	}
	for _, m := range catalog {
		if m.ID == DefaultModel {
			return m
		}
	}
	return catalog[0]
}
