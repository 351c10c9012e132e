package tools

// Schema describes a tool for JSON schema/tool-calling.
type Schema struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []SchemaField `json:"parameters"`
}

// SchemaField describes a single parameter.
type SchemaField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Schemas provides descriptors for available tools.
func (r *Registry) Schemas() []Schema {
	var s []Schema
	if r.Searcher != nil {
		s = append(s, Schema{
			Name:        ToolWebSearch,
			Description: "Search the web and return ranked result URLs",
			Parameters: []SchemaField{
				{Name: "query", Type: "string", Description: "Search query", Required: true},
			},
		})
	}
	if r.Fetcher != nil {
		s = append(s, Schema{
			Name:        ToolWebScrape,
			Description: "Fetch a URL and return its readable page text",
			Parameters: []SchemaField{
				{Name: "url", Type: "string", Description: "Absolute URL to fetch", Required: true},
			},
		})
	}
	return s
}

// Schema returns the descriptor for a single tool.
func (r *Registry) Schema(name string) (Schema, bool) {
	for _, s := range r.Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}
