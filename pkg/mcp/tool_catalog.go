package mcp

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/cablecat/pkg/catalog"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/record"
)

// CatalogParams defines parameters for the catalog tool.
type CatalogParams struct {
	Records []map[string]any `json:"records" jsonschema:"the asset records to catalog"`
	Fields  []string         `json:"fields,omitempty" jsonschema:"schema fields or pass attributes to catalog, defaults to the rulebook's catalog fields"`
}

// CatalogValue is a distinct value and the number of records holding it.
type CatalogValue struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// CatalogEntry is the catalog of one field.
type CatalogEntry struct {
	Field  string         `json:"field"`
	Values []CatalogValue `json:"values"`
	Absent int            `json:"absent"`
	Unset  int            `json:"unset"`
}

// CatalogResult contains the catalog of the requested fields.
type CatalogResult struct {
	Message string         `json:"message"`
	Entries []CatalogEntry `json:"entries"`
	Issues  []string       `json:"issues,omitempty"`
}

func (s *Server) handleCatalog(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[CatalogParams],
) (*mcp.CallToolResultFor[CatalogResult], error) {
	start := time.Now()
	c := s.classifier()

	known := slices.Concat(c.Schema().Names(), c.Attributes())

	cat, err := catalog.New(known, catalog.WithCollation(s.collation))
	if err != nil {
		return nil, fmt.Errorf("create cataloger: %w", err)
	}

	result := CatalogResult{Entries: []CatalogEntry{}}
	records := make([]record.Record, 0, len(params.Arguments.Records))

	for i, fields := range params.Arguments.Records {
		rec, issues := toRecord(c.Schema(), fields)
		for _, issue := range issues {
			result.Issues = append(result.Issues, fmt.Sprintf("records[%d]: %s", i, issue))
		}

		records = append(records, rec)
	}

	results, err := c.ClassifyAll(ctx, records, classify.Options{})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	s.observe(c, results, start)

	classified := make([]record.Record, 0, len(results))
	for _, r := range results {
		classified = append(classified, r.Record)
	}

	fields := params.Arguments.Fields
	if len(fields) == 0 {
		fields = c.CatalogFields()
	}

	entries, err := cat.Catalog(classified, fields...)
	if err != nil {
		result.Message = fmt.Sprintf("INVALID INPUT ERROR: %v. Use schema fields or pass attributes from list_rules.", err)

		return &mcp.CallToolResultFor[CatalogResult]{
			Content:           []mcp.Content{&mcp.TextContent{Text: result.Message}},
			StructuredContent: result,
			IsError:           true,
		}, nil
	}

	for _, e := range entries {
		ce := CatalogEntry{
			Field:  e.Field,
			Values: make([]CatalogValue, 0, len(e.Values)),
			Absent: e.Absent,
			Unset:  e.Unset,
		}
		for _, vc := range e.Values {
			ce.Values = append(ce.Values, CatalogValue{Value: vc.Value.Any(), Count: vc.Count})
		}

		result.Entries = append(result.Entries, ce)
	}

	result.Message = fmt.Sprintf("Cataloged %d fields over %d records.", len(result.Entries), len(records))

	return &mcp.CallToolResultFor[CatalogResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: result.Message}},
		StructuredContent: result,
	}, nil
}
