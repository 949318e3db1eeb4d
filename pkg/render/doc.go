// Package render serialises committed VNode trees to HTML.
//
// Output is deterministic: attributes are sorted, text and attribute values
// are escaped, void elements have no closing tag and boolean attributes are
// rendered by presence. Event handlers never reach the output; elements
// that carry one get a data-on-<event> marker instead.
//
//	html := render.ToHTML(container)
//
// For debugging, a Renderer can pretty print and tag every element with its
// host ID:
//
//	r := render.NewRenderer(render.RendererConfig{Pretty: true, IncludeHIDs: true})
//	err := r.RenderToWriter(os.Stdout, container)
package render
