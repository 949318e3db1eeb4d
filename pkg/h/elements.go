package h

import "github.com/vango-dev/fiber/pkg/reconciler"

// Document structure elements

func Header(args ...any) *reconciler.Element  { return El("header", args...) }
func Footer(args ...any) *reconciler.Element  { return El("footer", args...) }
func Main(args ...any) *reconciler.Element    { return El("main", args...) }
func Nav(args ...any) *reconciler.Element     { return El("nav", args...) }
func Section(args ...any) *reconciler.Element { return El("section", args...) }
func Article(args ...any) *reconciler.Element { return El("article", args...) }
func Aside(args ...any) *reconciler.Element   { return El("aside", args...) }
func H1(args ...any) *reconciler.Element      { return El("h1", args...) }
func H2(args ...any) *reconciler.Element      { return El("h2", args...) }
func H3(args ...any) *reconciler.Element      { return El("h3", args...) }

// Content elements

func Div(args ...any) *reconciler.Element  { return El("div", args...) }
func P(args ...any) *reconciler.Element    { return El("p", args...) }
func Span(args ...any) *reconciler.Element { return El("span", args...) }
func Pre(args ...any) *reconciler.Element  { return El("pre", args...) }
func Ul(args ...any) *reconciler.Element   { return El("ul", args...) }
func Ol(args ...any) *reconciler.Element   { return El("ol", args...) }
func Li(args ...any) *reconciler.Element   { return El("li", args...) }
func Hr(args ...any) *reconciler.Element   { return El("hr", args...) }

// Inline elements

func A(args ...any) *reconciler.Element      { return El("a", args...) }
func Strong(args ...any) *reconciler.Element { return El("strong", args...) }
func Em(args ...any) *reconciler.Element     { return El("em", args...) }
func B(args ...any) *reconciler.Element      { return El("b", args...) }
func I(args ...any) *reconciler.Element      { return El("i", args...) }
func Code(args ...any) *reconciler.Element   { return El("code", args...) }
func Br(args ...any) *reconciler.Element     { return El("br", args...) }

// Form elements

func Form(args ...any) *reconciler.Element     { return El("form", args...) }
func Input(args ...any) *reconciler.Element    { return El("input", args...) }
func Textarea(args ...any) *reconciler.Element { return El("textarea", args...) }
func Select(args ...any) *reconciler.Element   { return El("select", args...) }
func Option(args ...any) *reconciler.Element   { return El("option", args...) }
func Button(args ...any) *reconciler.Element   { return El("button", args...) }
func Label(args ...any) *reconciler.Element    { return El("label", args...) }

// Table elements

func Table(args ...any) *reconciler.Element { return El("table", args...) }
func Thead(args ...any) *reconciler.Element { return El("thead", args...) }
func Tbody(args ...any) *reconciler.Element { return El("tbody", args...) }
func Tr(args ...any) *reconciler.Element    { return El("tr", args...) }
func Th(args ...any) *reconciler.Element    { return El("th", args...) }
func Td(args ...any) *reconciler.Element    { return El("td", args...) }

// Media elements

func Img(args ...any) *reconciler.Element { return El("img", args...) }
