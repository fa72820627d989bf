// Package color styles plan output for terminals.
package color

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color colorizes text when enabled.
type Color struct {
	enabled bool
	add     *color.Color
	change  *color.Color
	destroy *color.Color
	warn    *color.Color
	bold    *color.Color
	faint   *color.Color
}

// New creates a colorizer. Color is also disabled by NO_COLOR, a dumb
// terminal, or output that is not a terminal.
func New(enabled bool) *Color {
	c := &Color{
		enabled: enabled && shouldEnableColor(),
		add:     color.New(color.FgGreen),
		change:  color.New(color.FgYellow),
		destroy: color.New(color.FgRed),
		warn:    color.New(color.FgMagenta, color.Bold),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
	}
	for _, p := range []*color.Color{c.add, c.change, c.destroy, c.warn, c.bold, c.faint} {
		if c.enabled {
			p.EnableColor()
		} else {
			p.DisableColor()
		}
	}
	return c
}

func shouldEnableColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return !color.NoColor
}

// Enabled reports whether output is colored.
func (c *Color) Enabled() bool { return c.enabled }

// Add colors additions green.
func (c *Color) Add(text string) string { return c.add.Sprint(text) }

// Change colors modifications yellow.
func (c *Color) Change(text string) string { return c.change.Sprint(text) }

// Destroy colors removals red.
func (c *Color) Destroy(text string) string { return c.destroy.Sprint(text) }

// Warn highlights warnings.
func (c *Color) Warn(text string) string { return c.warn.Sprint(text) }

// Bold makes text bold.
func (c *Color) Bold(text string) string { return c.bold.Sprint(text) }

// Faint dims secondary text such as SQL comments.
func (c *Color) Faint(text string) string { return c.faint.Sprint(text) }

// PlanSymbol returns the symbol for a plan action.
func (c *Color) PlanSymbol(action string) string {
	switch action {
	case "add":
		return c.Add("+")
	case "change":
		return c.Change("~")
	case "destroy":
		return c.Destroy("-")
	default:
		return " "
	}
}

func (c *Color) counts(added, modified, dropped int) string {
	return strings.Join([]string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to modify", modified)),
		c.Destroy(fmt.Sprintf("%d to drop", dropped)),
	}, ", ")
}

// FormatSummaryLine formats per-group counts.
func (c *Color) FormatSummaryLine(group string, added, modified, dropped int) string {
	return fmt.Sprintf("  %s: %s", group, c.counts(added, modified, dropped))
}

// FormatPlanHeader formats the plan header.
func (c *Color) FormatPlanHeader(added, modified, dropped int) string {
	return fmt.Sprintf("Plan: %s.", c.counts(added, modified, dropped))
}
