package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// regionProp describes an optional crop rectangle in pixels.
func regionProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x1": map[string]interface{}{"type": "integer"},
			"y1": map[string]interface{}{"type": "integer"},
			"x2": map[string]interface{}{"type": "integer"},
			"y2": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Tiling
		{
			Name:        "pid_tile_image",
			Description: "Split a diagram image into overlapping square tiles. Returns the tile grid and, when save_dir is given, writes each tile as {source}_tile_{x}_{y}.png.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      stringProp("Absolute path to the diagram image"),
					"source_id": stringProp("Prefix for tile ids. Defaults to the file name without extension"),
					"tile_size": intProp("Tile edge length in pixels. Defaults to the configured tiling.size"),
					"overlap":   intProp("Overlap between neighbouring tiles in pixels. Defaults to the configured tiling.overlap"),
					"save_dir":  stringProp("Optional directory to write tile PNGs into"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pid_tile_overlay",
			Description: "Render the tile grid on top of a diagram image and return it as base64 PNG, to check tile size and overlap visually.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       stringProp("Absolute path to the diagram image"),
					"tile_size":  intProp("Tile edge length in pixels"),
					"overlap":    intProp("Overlap in pixels"),
					"grid_color": stringProp("Grid color as hex (#RRGGBB or #RRGGBBAA). Default: #FF000080"),
				},
				"required": []string{"path"},
			},
		},

		// Knowledge base
		{
			Name:        "pid_learn_symbol",
			Description: "Add a reference symbol image to the knowledge base. Learning the same label and category again replaces the stored entry.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     stringProp("Absolute path to the reference image"),
					"label":    stringProp("Symbol label, e.g. gate_valve. Defaults to the file name"),
					"category": stringProp("Symbol category: valve, pump, vessel, instrument or misc. Guessed from the label when empty"),
					"region":   regionProp("Optional region of the image to learn instead of the whole image"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pid_identify_symbol",
			Description: "Find the closest reference symbols to an image or image region. Lower distance means a closer match.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   stringProp("Absolute path to the image"),
					"k":      intProp("Number of matches to return. Default 1"),
					"region": regionProp("Optional region to identify instead of the whole image"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pid_ingest_symbols",
			Description: "Learn every PNG or JPEG reference image in a directory. Labels come from the file names.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir": stringProp("Directory holding reference symbol images"),
				},
				"required": []string{"dir"},
			},
		},
		{
			Name:        "pid_kb_count",
			Description: "Return the number of reference symbols in the knowledge base.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Extraction
		{
			Name:        "pid_detect_and_refine",
			Description: "Detect symbols on one tile image and verify each against the knowledge base. Returns the refined symbols with confidence and the per-detection outcomes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the tile image"),
					"draw_boxes": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the tile with symbol boxes drawn on it",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pid_run_pipeline",
			Description: "Process every tile in a directory, or tile a page image in memory, resuming from the result file. Tiles already recorded are skipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tiles_dir": stringProp("Directory of tile PNGs. Defaults to pipeline.tiles_dir"),
					"image":     stringProp("Page image to tile in memory instead of reading tiles_dir"),
					"source_id": stringProp("Tile id prefix when image is given. Defaults to the file name"),
					"tile_size": intProp("Tile size when image is given. Defaults to tiling.size"),
					"overlap":   intProp("Tile overlap when image is given. Defaults to tiling.overlap"),
					"output":    stringProp("Result file path. Defaults to pipeline.output"),
					"delay_ms":  intProp("Minimum milliseconds between detector calls. Defaults to pipeline.delay"),
				},
			},
		},
		{
			Name:        "pid_get_results",
			Description: "Read the result file, optionally for a single tile.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output": stringProp("Result file path. Defaults to pipeline.output"),
					"tile":   stringProp("Return only this tile's symbols"),
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
