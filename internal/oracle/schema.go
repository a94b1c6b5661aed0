package oracle

// Stage schemas the oracle's replies must satisfy. Kept as plain maps so
// they can be embedded in prompts and compiled for validation from the
// same source.

// DetectionSchema matches the detection stage reply. tableType is
// tolerated absent so a no-table verdict does not have to invent one.
func DetectionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hasTable":  map[string]any{"type": "boolean"},
			"tableType": map[string]any{"type": "string"},
			"confidence": map[string]any{
				"type": "string",
				"enum": []any{"high", "medium", "low"},
			},
		},
		"required": []any{"hasTable", "confidence"},
	}
}

// ClassificationSchema matches the stage that assigns semantics to row and
// column indices. It never carries cell values.
func ClassificationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"columns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"index": map[string]any{"type": "integer"},
						"type": map[string]any{
							"type": "string",
							"enum": []any{"year", "quarter", "unknown"},
						},
						"year": map[string]any{"type": "string"},
					},
					"required": []any{"index", "type"},
				},
			},
			"rows": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"index": map[string]any{"type": "integer"},
						"category": map[string]any{
							"type": "string",
							"enum": []any{"Revenue", "Expenses", "Profit", "Other"},
						},
					},
					"required": []any{"index", "category"},
				},
			},
		},
		"required": []any{"columns", "rows"},
	}
}

// StructureSchema matches the vision variant's one-shot transcription.
// Values are strings on purpose: the model transcribes exact cell text
// and never pre-parses numbers.
func StructureSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"columns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"index": map[string]any{"type": "integer"},
						"label": map[string]any{"type": "string"},
					},
					"required": []any{"index"},
				},
			},
			"rows": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"index":    map[string]any{"type": "integer"},
						"lineItem": map[string]any{"type": "string"},
						"values": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []any{"index", "lineItem", "values"},
				},
			},
		},
		"required": []any{"columns", "rows"},
	}
}
