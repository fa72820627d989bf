// Package plan renders computed changesets for review and persists them
// for a later apply.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgplex/monolayer/internal/changeset"
	"github.com/pgplex/monolayer/internal/color"
	"github.com/pgplex/monolayer/internal/fingerprint"
	"github.com/pgplex/monolayer/internal/introspect"
	"github.com/pgplex/monolayer/internal/version"
)

// Plan is the ordered set of changesets migrating one schema.
type Plan struct {
	Schema     string
	Changesets []changeset.Changeset
	CreatedAt  time.Time

	// SourceFingerprint identifies the database state the plan was
	// computed against. Scope is what was read to compute it.
	SourceFingerprint *fingerprint.SchemaFingerprint
	Scope             introspect.Options
}

// PlanJSON represents the structured JSON output format
type PlanJSON struct {
	Version           string                         `json:"version"`
	MonolayerVersion  string                         `json:"monolayer_version"`
	CreatedAt         time.Time                      `json:"created_at"`
	Schema            string                         `json:"schema"`
	Transaction       bool                           `json:"transaction"`
	SourceFingerprint *fingerprint.SchemaFingerprint `json:"source_fingerprint,omitempty"`
	Scope             introspect.Options             `json:"scope"`
	Summary           Summary                        `json:"summary"`
	Changesets        []changeset.Changeset          `json:"changesets"`
}

// Summary counts changesets by action.
type Summary struct {
	Add      int                    `json:"add"`
	Change   int                    `json:"change"`
	Destroy  int                    `json:"destroy"`
	Total    int                    `json:"total"`
	Warnings int                    `json:"warnings"`
	ByPhase  map[string]PhaseSummary `json:"by_phase"`
}

// PhaseSummary counts the changesets of one phase.
type PhaseSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
}

// Action classes of a changeset type.
const (
	ActionAdd     = "add"
	ActionChange  = "change"
	ActionDestroy = "destroy"
)

// New creates a plan.
func New(schemaName string, cs []changeset.Changeset, source *fingerprint.SchemaFingerprint) *Plan {
	return &Plan{
		Schema:            schemaName,
		Changesets:        cs,
		CreatedAt:         time.Now(),
		SourceFingerprint: source,
	}
}

// FromJSON loads a plan written by ToJSON.
func FromJSON(data []byte) (*Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if major(pj.Version) != major(version.PlanFormat()) {
		return nil, fmt.Errorf("unsupported plan format %s, expected %s", pj.Version, version.PlanFormat())
	}
	return &Plan{
		Schema:            pj.Schema,
		Changesets:        pj.Changesets,
		CreatedAt:         pj.CreatedAt,
		SourceFingerprint: pj.SourceFingerprint,
		Scope:             pj.Scope,
	}, nil
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}

// Phase returns a plan holding only the changesets of phase. Applying an
// earlier phase moves the database away from the source state, so the
// source fingerprint is dropped when p has changesets in an earlier phase.
func (p *Plan) Phase(phase changeset.Phase) *Plan {
	out := *p
	out.Changesets = nil
	for _, c := range p.Changesets {
		if c.Phase == phase {
			out.Changesets = append(out.Changesets, c)
		}
	}
	if p.hasChangesBefore(phase) {
		out.SourceFingerprint = nil
	}
	return &out
}

func (p *Plan) hasChangesBefore(phase changeset.Phase) bool {
	earlier := map[changeset.Phase]bool{}
	for _, ph := range changeset.Phases {
		if ph == phase {
			break
		}
		earlier[ph] = true
	}
	for _, c := range p.Changesets {
		if earlier[c.Phase] {
			return true
		}
	}
	return false
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.Changesets) == 0
}

// Transaction reports whether every changeset runs in a transaction.
func (p *Plan) Transaction() bool {
	for _, c := range p.Changesets {
		if !c.Transaction {
			return false
		}
	}
	return true
}

// Action classifies a changeset type as an addition, a change or a removal.
func Action(t changeset.Type) string {
	s := string(t)
	switch {
	case strings.HasPrefix(s, "create"), strings.HasPrefix(s, "add"):
		return ActionAdd
	case strings.HasPrefix(s, "drop"):
		return ActionDestroy
	}
	return ActionChange
}

// Summary counts the plan's changesets.
func (p *Plan) Summary() Summary {
	s := Summary{ByPhase: map[string]PhaseSummary{}}
	for _, c := range p.Changesets {
		ps := s.ByPhase[string(c.Phase)]
		switch Action(c.Type) {
		case ActionAdd:
			s.Add++
			ps.Add++
		case ActionDestroy:
			s.Destroy++
			ps.Destroy++
		default:
			s.Change++
			ps.Change++
		}
		s.ByPhase[string(c.Phase)] = ps
		s.Warnings += len(c.Warnings)
	}
	s.Total = len(p.Changesets)
	return s
}

// ToJSON returns the plan as structured JSON.
func (p *Plan) ToJSON() (string, error) {
	cs := p.Changesets
	if cs == nil {
		cs = []changeset.Changeset{}
	}
	pj := PlanJSON{
		Version:           version.PlanFormat(),
		MonolayerVersion:  version.App(),
		CreatedAt:         p.CreatedAt,
		Schema:            p.Schema,
		Transaction:       p.Transaction(),
		SourceFingerprint: p.SourceFingerprint,
		Scope:             p.Scope,
		Summary:           p.Summary(),
		Changesets:        cs,
	}
	data, err := json.MarshalIndent(pj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// ToSQL returns the up statements, grouped by changeset.
func (p *Plan) ToSQL() string {
	return p.sql(color.New(false))
}

func (p *Plan) sql(c *color.Color) string {
	var b strings.Builder
	for i, cs := range p.Changesets {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Faint(fmt.Sprintf("-- %s: %s %s", cs.Phase, cs.Type, address(cs))))
		b.WriteString("\n")
		if !cs.Transaction {
			b.WriteString(c.Faint("-- runs outside a transaction"))
			b.WriteString("\n")
		}
		for _, stmt := range cs.Up {
			b.WriteString(strings.TrimRight(stmt, "; \n"))
			b.WriteString(";\n")
		}
	}
	return b.String()
}

// HumanColored returns a human-readable summary of the plan.
func (p *Plan) HumanColored(enableColor bool) string {
	c := color.New(enableColor)
	var b strings.Builder

	if p.Empty() {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	s := p.Summary()
	b.WriteString(c.FormatPlanHeader(s.Add, s.Change, s.Destroy) + "\n\n")

	b.WriteString(c.Bold("Summary by phase:") + "\n")
	for _, phase := range changeset.Phases {
		if ps, ok := s.ByPhase[string(phase)]; ok {
			b.WriteString(c.FormatSummaryLine(string(phase), ps.Add, ps.Change, ps.Destroy) + "\n")
		}
	}
	b.WriteString("\n")

	for _, phase := range changeset.Phases {
		if _, ok := s.ByPhase[string(phase)]; !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", c.Bold(strings.ToUpper(string(phase[:1]))+string(phase[1:])))
		for _, cs := range p.Changesets {
			if cs.Phase != phase {
				continue
			}
			fmt.Fprintf(&b, "  %s %s %s\n", c.PlanSymbol(Action(cs.Type)), cs.Type, address(cs))
			for _, w := range cs.Warnings {
				fmt.Fprintf(&b, "      %s %s\n", c.Warn("! "+string(w.Code)), warningText(w))
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Transaction: %t\n\n", p.Transaction())

	b.WriteString(c.Bold("DDL to be executed:") + "\n")
	b.WriteString(strings.Repeat("-", 50) + "\n\n")
	b.WriteString(p.sql(c))
	return b.String()
}

func address(cs changeset.Changeset) string {
	switch {
	case cs.CurrentTableName != "":
		return cs.SchemaName + "." + cs.CurrentTableName
	case cs.TableName != "":
		return cs.SchemaName + "." + cs.TableName
	}
	return cs.SchemaName
}

func warningText(w changeset.Warning) string {
	target := w.Table
	if w.Column != "" {
		target += "." + w.Column
	}
	return fmt.Sprintf("%s (%s): %s", w.Type, target, w.Code.Description())
}
