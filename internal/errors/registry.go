package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Contract violations (F001-F019)
	// ============================================

	"F001": {
		Category:   CategoryContract,
		Message:    "Objects are not valid as a child",
		Detail:     "A child must be nil, a bool, a string, a number, an *Element, a *Portal, a []Node or an iter.Seq[Node].",
		Suggestion: "Convert the value to a string or wrap it in an element.",
	},
	"F002": {
		Category:   CategoryContract,
		Message:    "Hook called outside of a function component render",
		Detail:     "Hooks can only be used while the reconciler is rendering the function component that owns them.",
		Suggestion: "Call hooks at the top level of the render function, never from effects or event handlers.",
	},
	"F003": {
		Category: CategoryContract,
		Message:  "Should not already be working",
		Detail:   "A commit or render was started while another one was in progress on the same renderer.",
	},
	"F004": {
		Category:   CategoryContract,
		Message:    "Maximum update depth exceeded",
		Detail:     "A component repeatedly schedules updates inside DidUpdate or a layout effect. The reconciler limits nested updates to prevent infinite loops.",
		Suggestion: "Guard the update with a condition that becomes false.",
	},
	"F005": {
		Category: CategoryContract,
		Message:  "Unknown root exit status",
	},
	"F006": {
		Category: CategoryContract,
		Message:  "Unknown unit of work tag",
	},
	"F007": {
		Category:   CategoryContract,
		Message:    "Invalid element type",
		Detail:     "Element types must be a host tag string, a *FunctionType, a *ClassType, Fragment or Suspense.",
		Suggestion: "Create components with reconciler.Func or reconciler.Class.",
	},
	"F008": {
		Category:   CategoryContract,
		Message:    "Rendered a different set of hooks than during the previous render",
		Detail:     "Hooks must be called in the exact same order on every render.",
		Suggestion: "Do not call hooks inside conditions or loops.",
	},
	"F009": {
		Category: CategoryContract,
		Message:  "Expected to find a host parent",
		Detail:   "A host node was placed below a fiber that has no host component, root or portal above it.",
	},
	"F010": {
		Category: CategoryContract,
		Message:  "Root is not mounted",
	},
	"F011": {
		Category: CategoryContract,
		Message:  "The root failed to unmount after an error",
		Detail:   "The error update on the root must have removed every child.",
	},

	// ============================================
	// Render errors (F020-F039)
	// ============================================

	"F020": {
		Category:   CategoryRender,
		Message:    "A component suspended while rendering, but no fallback UI was specified",
		Suggestion: "Add a Suspense element higher in the tree to provide a loading indicator.",
	},
	"F021": {
		Category: CategoryRender,
		Message:  "Panic while rendering",
	},

	// ============================================
	// Config errors (F060-F079)
	// ============================================

	"F060": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create a fiber.json file or pass the path explicitly.",
	},
	"F061": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// CLI errors (F080-F099)
	// ============================================

	"F080": {
		Category: CategoryCLI,
		Message:  "Scenario could not be loaded",
	},
	"F081": {
		Category: CategoryCLI,
		Message:  "Commit log upload failed",
	},
	"F082": {
		Category:   CategoryCLI,
		Message:    "Invalid scenario",
		Suggestion: "Check the step against the scenario file format in pkg/scenario.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
