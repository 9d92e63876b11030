package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Locator is one way of finding an element.
type Locator struct {
	// Name identifies the locator in logs ("row", "text", ...).
	Name string

	// Pattern is a CSS selector or XPath expression. For text locators it
	// contains a single %s that is replaced by an XPath string literal.
	Pattern string

	// XPath selects chromedp.BySearch instead of chromedp.ByQuery.
	XPath bool
}

// Query renders the locator for the given text.
func (l Locator) Query(text string) string {
	if !strings.Contains(l.Pattern, "%s") {
		return l.Pattern
	}
	return fmt.Sprintf(l.Pattern, xpathLiteral(text))
}

// by returns the chromedp query option for this locator.
func (l Locator) by() chromedp.QueryOption {
	if l.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Strategies holds the ranked locator lists for each UI element the
// workflow touches.
type Strategies struct {
	// Point locates a point on the current view by its label. Exact matches
	// rank before substring matches.
	Point []Locator

	// DialogPoint is an XPath, relative to the dialog, with a single %s for
	// the identifier the open dialog must show.
	DialogPoint string

	// Dialog are CSS selectors that identify an open modal.
	Dialog []string

	// Input are CSS selectors, relative to the dialog, for the value field.
	Input []string

	// ForceToggle are locators for the control that enables the force input.
	ForceToggle []Locator

	// Unforce, Confirm and Cancel are button labels inside the dialog.
	Unforce []string
	Confirm []string
	Cancel  []string
}

// DefaultStrategies returns the locators for the EcoStruxure-style console.
func DefaultStrategies() Strategies {
	return Strategies{
		Point: []Locator{
			{Name: "row-exact", Pattern: "//tr[td[normalize-space(.)=%s]]", XPath: true},
			{Name: "text-exact", Pattern: "//*[not(self::script) and not(self::style)][normalize-space(text())=%s]", XPath: true},
			{Name: "row", Pattern: "//tr[contains(normalize-space(.), %s)]", XPath: true},
			{Name: "text", Pattern: "//*[not(self::script) and not(self::style)][contains(normalize-space(text()), %s)]", XPath: true},
		},
		DialogPoint: "//*[not(self::input)][normalize-space(text())=%s]",
		Dialog: []string{"[role='dialog']", "div.modal", ".dialog"},
		Input:  []string{"input[type='number']", "input[type='text']"},
		ForceToggle: []Locator{
			{Name: "toggle", Pattern: "input[type='checkbox'][name*='force' i]"},
			{Name: "button", Pattern: "//button[normalize-space(.)=%s]", XPath: true},
		},
		Unforce: []string{"Unforce", "Release"},
		Confirm: []string{"OK"},
		Cancel:  []string{"Cancel"},
	}
}

// dialogSelector joins the dialog selectors into one CSS selector list.
func (s Strategies) dialogSelector() string {
	return strings.Join(s.Dialog, ", ")
}

// inDialog scopes an inner CSS selector to every dialog selector.
func (s Strategies) inDialog(inner string) string {
	scoped := make([]string, 0, len(s.Dialog))
	for _, d := range s.Dialog {
		scoped = append(scoped, d+" "+inner)
	}
	return strings.Join(scoped, ", ")
}

// dialogRoot matches any open dialog element in XPath.
const dialogRoot = "//*[@role='dialog' or contains(concat(' ', normalize-space(@class), ' '), ' modal ') or contains(concat(' ', normalize-space(@class), ' '), ' dialog ')]"

// dialogButton returns an XPath for a button with the given label inside
// any open dialog.
func (s Strategies) dialogButton(label string) string {
	return dialogRoot + "//button[normalize-space(.)=" + xpathLiteral(label) + "]"
}

// dialogPoint returns an XPath for an element inside any open dialog whose
// own text is exactly name.
func (s Strategies) dialogPoint(name string) string {
	pattern := s.DialogPoint
	if pattern == "" {
		pattern = DefaultStrategies().DialogPoint
	}
	return dialogRoot + fmt.Sprintf(pattern, xpathLiteral(name))
}

// inputSelector scopes every input strategy to the dialog in one CSS list.
func (s Strategies) inputSelector() string {
	scoped := make([]string, 0, len(s.Input))
	for _, inner := range s.Input {
		scoped = append(scoped, s.inDialog(inner))
	}
	return strings.Join(scoped, ", ")
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
