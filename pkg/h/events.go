package h

// event creates a handler attribute. The name is prefixed with "on"
// (e.g., "click" becomes "onclick").
func event(name string, handler any) Attr {
	return attr("on"+name, handler)
}

// On attaches a handler for an arbitrary event.
func On(name string, handler any) Attr { return event(name, handler) }

// OnClick handles click events.
func OnClick(handler func()) Attr { return event("click", handler) }

// OnInput handles input events.
func OnInput(handler func(value string)) Attr { return event("input", handler) }

// OnChange handles change events.
func OnChange(handler func(value string)) Attr { return event("change", handler) }

// OnSubmit handles form submission.
func OnSubmit(handler func()) Attr { return event("submit", handler) }
