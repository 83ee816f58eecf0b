package tools

// Catalog tool names. The set is fixed at build time; plans narrow it,
// domain filtering narrows it further, nothing ever widens it.
const (
	ToolVehicleLookup    = "vehicle_lookup"
	ToolCompareVehicles  = "compare_vehicles"
	ToolKnownIssues      = "known_issues"
	ToolExpertReviews    = "expert_reviews"
	ToolMaintenance      = "maintenance_schedule"
	ToolPartsCatalog     = "parts_catalog"
	ToolDynoRuns         = "dyno_runs"
	ToolLapTimes         = "lap_times"
	ToolEventsLookup     = "events_lookup"
	ToolKnowledgeSearch  = "knowledge_search"
)

// variantParam is the shared schema fragment for the vehicle variant
// argument. The executor injects the caller's own variant when the model
// omits it, so the description tells the model it is optional.
func variantParam(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": desc + " Omit to use the vehicle currently in context.",
	}
}

// Catalog returns the full built-in tool registry.
func Catalog() *Registry {
	r := NewRegistry()

	r.Register(&Tool{
		Name:        ToolVehicleLookup,
		Description: "Look up full specifications for a vehicle variant: engine, drivetrain, weight, factory performance figures, production years.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug (e.g., bmw-e46-m3, porsche-996-carrera)."),
			},
		},
		Domains: []string{"comparison", "performance", "buying", "education"},
	})

	r.Register(&Tool{
		Name:        ToolCompareVehicles,
		Description: "Compare two or more vehicle variants side by side across specs, pricing, and ownership costs.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variants": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Two or more variant slugs to compare.",
				},
			},
			"required": []string{"variants"},
		},
		Domains: []string{"comparison", "buying"},
	})

	r.Register(&Tool{
		Name:        ToolKnownIssues,
		Description: "Retrieve documented common failures, recalls, and weak points for a vehicle variant, with mileage ranges and repair cost estimates.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
				"system": map[string]any{
					"type":        "string",
					"description": "Optional subsystem filter (engine, transmission, suspension, electrical).",
				},
			},
		},
		Domains: []string{"reliability", "buying", "maintenance"},
	})

	r.Register(&Tool{
		Name:        ToolExpertReviews,
		Description: "Fetch summarized long-term reviews and journalist verdicts for a vehicle variant.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
			},
		},
		Domains: []string{"comparison", "buying", "education"},
	})

	r.Register(&Tool{
		Name:        ToolMaintenance,
		Description: "Get the factory maintenance schedule and typical service costs for a vehicle variant.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
				"mileage": map[string]any{
					"type":        "integer",
					"description": "Current odometer reading, to highlight upcoming services.",
				},
			},
		},
		Domains: []string{"maintenance", "reliability", "buying"},
	})

	r.Register(&Tool{
		Name:        ToolPartsCatalog,
		Description: "Search aftermarket and OEM parts for a vehicle variant, including fitment notes and price ranges.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
				"query": map[string]any{
					"type":        "string",
					"description": "Part name or category (e.g., coilovers, downpipe, brake pads).",
				},
			},
			"required": []string{"query"},
		},
		Domains: []string{"modifications", "maintenance"},
	})

	r.Register(&Tool{
		Name:        ToolDynoRuns,
		Description: "Retrieve measured dyno results for a vehicle variant at various modification stages, with before/after figures.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
				"stage": map[string]any{
					"type":        "string",
					"description": "Optional modification stage filter (stock, stage1, stage2).",
				},
			},
		},
		Domains: []string{"performance", "modifications"},
	})

	r.Register(&Tool{
		Name:        ToolLapTimes,
		Description: "Look up recorded lap times for a vehicle variant at known circuits, with driver and conditions metadata.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variant": variantParam("The vehicle variant slug."),
				"circuit": map[string]any{
					"type":        "string",
					"description": "Optional circuit filter (e.g., nurburgring-gp, laguna-seca).",
				},
			},
		},
		Domains: []string{"track", "performance"},
	})

	r.Register(&Tool{
		Name:        ToolEventsLookup,
		Description: "Find upcoming automotive events, meets, and track days near a location.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City or region to search.",
				},
				"kind": map[string]any{
					"type":        "string",
					"description": "Optional event kind (meet, show, track_day, race).",
				},
			},
			"required": []string{"location"},
		},
		Domains: []string{"events", "track"},
	})

	r.Register(&Tool{
		Name:        ToolKnowledgeSearch,
		Description: "Full-text search across the automotive knowledge base: technical articles, community wisdom, and buying guides.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query.",
				},
			},
			"required": []string{"query"},
		},
		Domains: []string{"education", "reliability", "modifications", "buying"},
	})

	return r
}
