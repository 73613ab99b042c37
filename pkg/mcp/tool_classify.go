package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/cablecat/pkg/classify"
)

// RecordParams defines parameters for the classify_record and
// explain_record tools.
type RecordParams struct {
	Record map[string]any `json:"record" jsonschema:"the asset record keyed by schema field name"`
}

// PassLabel is the label one pass assigned.
type PassLabel struct {
	Attribute string `json:"attribute"`
	Label     string `json:"label"`
}

// ClassifyResult contains the result of classifying one record.
type ClassifyResult struct {
	Message string      `json:"message"`
	Labels  []PassLabel `json:"labels"`
	Gaps    []string    `json:"gaps,omitempty"`
	Issues  []string    `json:"issues,omitempty"`
}

func (s *Server) handleClassifyRecord(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[RecordParams],
) (*mcp.CallToolResultFor[ClassifyResult], error) {
	start := time.Now()
	c := s.classifier()

	rec, issues := toRecord(c.Schema(), params.Arguments.Record)
	res := c.Classify(rec)

	s.observe(c, []classify.Result{res}, start)

	result := ClassifyResult{
		Labels: s.passLabels(c, res),
		Gaps:   res.Gaps(c),
		Issues: issues,
	}
	result.Message = formatClassifyMessage(result)

	return &mcp.CallToolResultFor[ClassifyResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
		StructuredContent: result,
	}, nil
}

func (s *Server) passLabels(c *classify.Classifier, res classify.Result) []PassLabel {
	attrs := c.Attributes()
	labels := make([]PassLabel, 0, len(attrs))

	for i, attr := range attrs {
		labels = append(labels, PassLabel{Attribute: attr, Label: label(res.Labels[i], s.unsetMarker)})
	}

	return labels
}

func formatClassifyMessage(result ClassifyResult) string {
	parts := make([]string, 0, len(result.Labels))
	for _, l := range result.Labels {
		parts = append(parts, l.Attribute+"="+l.Label)
	}

	msg := fmt.Sprintf("Classified record: %s.", strings.Join(parts, ", "))
	if len(result.Gaps) > 0 {
		msg += fmt.Sprintf(" No rule matched for: %s.", strings.Join(result.Gaps, ", "))
	}
	if len(result.Issues) > 0 {
		msg += fmt.Sprintf(" %d input issue(s) left fields absent.", len(result.Issues))
	}

	return msg
}
