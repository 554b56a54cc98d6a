package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Tool names.
const (
	ToolLocate     = "ui_locate"
	ToolHierarchy  = "ui_hierarchy"
	ToolAnnotate   = "ui_annotate"
	ToolImageInfo  = "ui_image_info"
	ToolCacheEvict = "ui_cache_evict"
)

var pathProperty = map[string]any{
	"type":        "string",
	"description": "Absolute path to the screenshot (PNG, JPEG or GIF)",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: ToolLocate,
			Description: "Find the UI element in a screenshot that best matches a natural-language description " +
				"(for example \"the blue Save button below the email field\"). Returns the element's bounding box, " +
				"center point and semantics, or found=false with the reason.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": pathProperty,
					"query": map[string]any{
						"type":        "string",
						"description": "Description of the element to find",
					},
				},
				"required": []string{"path", "query"},
			},
		},
		{
			Name: ToolHierarchy,
			Description: "Decompose a screenshot into horizontal sections, their leaf elements with neighbor links, " +
				"and density containers. Results are cached per image content.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name: ToolAnnotate,
			Description: "Draw the section and element boxes over a screenshot and return it as a PNG image. " +
				"With a query, the matched element is highlighted.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": pathProperty,
					"query": map[string]any{
						"type":        "string",
						"description": "Optional description of an element to locate and highlight",
					},
					"highlight_color": map[string]any{
						"type":        "string",
						"description": "Hex color of the highlighted element (e.g., \"#FF0000\")",
						"default":     "#FF0000",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        ToolImageInfo,
			Description: "Get the width, height and format of a screenshot without analyzing it.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        ToolCacheEvict,
			Description: "Drop the cached decomposition of a screenshot so the next call analyzes it again.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
	}
}
