package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/rule"
)

// RuleRef identifies a rule in tool output.
type RuleRef struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// ExplainStep describes how one pass labelled the record.
type ExplainStep struct {
	Winner    *RuleRef  `json:"winner,omitempty"`
	Attribute string    `json:"attribute"`
	Label     string    `json:"label"`
	Matched   []RuleRef `json:"matched,omitempty"`
	Defaulted bool      `json:"defaulted"`
}

// ExplainResult contains the result of explaining one record.
type ExplainResult struct {
	Message string        `json:"message"`
	Steps   []ExplainStep `json:"steps"`
	Issues  []string      `json:"issues,omitempty"`
}

func (s *Server) handleExplainRecord(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[RecordParams],
) (*mcp.CallToolResultFor[ExplainResult], error) {
	start := time.Now()
	c := s.classifier()

	rec, issues := toRecord(c.Schema(), params.Arguments.Record)
	ex := c.Explain(rec)

	s.observe(c, []classify.Result{ex.Result}, start)

	result := ExplainResult{
		Steps:  make([]ExplainStep, 0, len(ex.Steps)),
		Issues: issues,
	}

	for _, step := range ex.Steps {
		es := ExplainStep{
			Attribute: step.Attribute,
			Label:     label(step.Label, s.unsetMarker),
			Defaulted: step.Defaulted,
		}
		if step.Winner != nil {
			ref := newRuleRef(step.Winner)
			es.Winner = &ref
		}
		for _, r := range step.Matched {
			es.Matched = append(es.Matched, newRuleRef(r))
		}

		result.Steps = append(result.Steps, es)
	}

	result.Message = formatExplainMessage(result)

	return &mcp.CallToolResultFor[ExplainResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
		StructuredContent: result,
	}, nil
}

func newRuleRef(r *rule.Rule) RuleRef {
	return RuleRef{ID: r.ID, Label: r.Label, Order: r.EffectiveOrder()}
}

func formatExplainMessage(result ExplainResult) string {
	lines := make([]string, 0, len(result.Steps))

	for _, step := range result.Steps {
		switch {
		case step.Winner != nil && len(step.Matched) > 1:
			lines = append(lines, fmt.Sprintf("%s=%s: %d rules matched, the last one (order %d) won.",
				step.Attribute, step.Label, len(step.Matched), step.Winner.Order))
		case step.Winner != nil:
			lines = append(lines, fmt.Sprintf("%s=%s: matched by the rule with order %d.",
				step.Attribute, step.Label, step.Winner.Order))
		case step.Defaulted:
			lines = append(lines, fmt.Sprintf("%s=%s: no rule matched, default applied.",
				step.Attribute, step.Label))
		default:
			lines = append(lines, fmt.Sprintf("%s=%s: no rule matched.", step.Attribute, step.Label))
		}
	}

	return strings.Join(lines, "\n")
}
