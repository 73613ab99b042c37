package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/cablecat/pkg/rule"
)

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct {
	Attribute string `json:"attribute,omitempty" jsonschema:"the pass attribute to list"`
}

// RuleInfo describes one rule.
type RuleInfo struct {
	ID        string `json:"id,omitempty"`
	Label     string `json:"label"`
	Predicate string `json:"predicate"`
	Review    string `json:"review,omitempty"`
	Order     int    `json:"order"`
}

// PassInfo describes one pass.
type PassInfo struct {
	Default   *string    `json:"default,omitempty"`
	Attribute string     `json:"attribute"`
	Fields    []string   `json:"fields"`
	Labels    []string   `json:"labels"`
	Rules     []RuleInfo `json:"rules"`
}

// ListRulesResult contains the passes of the current rulebook.
type ListRulesResult struct {
	Message string     `json:"message"`
	Passes  []PassInfo `json:"passes"`
}

func (s *Server) handleListRules(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListRulesParams],
) (*mcp.CallToolResultFor[ListRulesResult], error) {
	c := s.classifier()
	want := params.Arguments.Attribute

	result := ListRulesResult{Passes: []PassInfo{}}

	for _, pass := range c.Passes() {
		if want != "" && pass.Attribute != want {
			continue
		}

		result.Passes = append(result.Passes, newPassInfo(pass))
	}

	if want != "" && len(result.Passes) == 0 {
		result.Message = fmt.Sprintf(
			"INVALID INPUT ERROR: Pass %q not found. Use one of: %v.", want, c.Attributes())

		return &mcp.CallToolResultFor[ListRulesResult]{
			Content:           []mcp.Content{&mcp.TextContent{Text: result.Message}},
			StructuredContent: result,
			IsError:           true,
		}, nil
	}

	rules := 0
	for _, p := range result.Passes {
		rules += len(p.Rules)
	}

	result.Message = fmt.Sprintf("Found %d passes with %d rules.", len(result.Passes), rules)

	return &mcp.CallToolResultFor[ListRulesResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: result.Message}},
		StructuredContent: result,
	}, nil
}

func newPassInfo(pass *rule.Set) PassInfo {
	info := PassInfo{
		Attribute: pass.Attribute,
		Default:   pass.Default,
		Fields:    pass.Fields(),
		Labels:    pass.Labels(),
	}

	for _, r := range pass.Ordered() {
		ri := RuleInfo{
			ID:     r.ID,
			Label:  r.Label,
			Order:  r.EffectiveOrder(),
			Review: r.Review,
		}
		if p := r.Predicate(); p != nil {
			ri.Predicate = p.String()
		}

		info.Rules = append(info.Rules, ri)
	}

	return info
}
