package tool

var SendTextMessageSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"message": map[string]interface{}{
			"type":        "string",
			"description": "The text to send. Keep it under 300 characters.",
		},
	},
	"required": []string{"message"},
}

var ScheduleFollowUpSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"when": map[string]interface{}{
			"type":        "string",
			"description": "When to call back, as the person said it, e.g. 'tomorrow at 3pm' or 'next Monday morning'.",
		},
		"topic": map[string]interface{}{
			"type":        "string",
			"description": "What the follow-up call should cover.",
		},
	},
	"required": []string{"when", "topic"},
}

var RecordNoteSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"note": map[string]interface{}{
			"type":        "string",
			"description": "A concise note in third person.",
		},
	},
	"required": []string{"note"},
}

var LookupRelationshipSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"field": map[string]interface{}{
			"type":        "string",
			"description": "Optional field to look up, e.g. 'open items' or 'timezone'. Omit to get everything.",
		},
	},
}
