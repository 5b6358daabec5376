package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/mcp/tools"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// Resource URI scheme: alergia://
// Supported URIs:
//   alergia://model/{id}
//   alergia://model/{id}/dot
//   alergia://schema/traces

const schemeModel = "alergia://model/"

// registerResources registers resource templates and handlers.
func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: "alergia://model/{id}",
		Name:        "Model",
		Description: "Full stored model: metadata, learner options, every state and transition. High context cost for large models - alergia_get_model and alergia_query_model return the parts you usually need.",
		MIMEType:    tools.MimeJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.5,
		},
	}, s.handleResourceModel)

	s.mcpServer.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: "alergia://model/{id}/dot",
		Name:        "Model Graph",
		Description: "Stored model as a Graphviz digraph. Render with 'dot -Tsvg'.",
		MIMEType:    tools.MimeDOT,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"user", "assistant"},
			Priority: 0.4,
		},
	}, s.handleResourceModelDOT)

	s.mcpServer.AddResource(&sdkmcp.Resource{
		URI:         "alergia://schema/traces",
		Name:        "Trace Schema",
		Description: "JSON schema of trace files accepted by the learning and analysis tools",
		MIMEType:    tools.MimeJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.6,
		},
	}, s.handleResourceTraceSchema)
}

// modelResource is the JSON body of alergia://model/{id}.
type modelResource struct {
	Metadata store.Metadata      `json:"metadata"`
	Model    *automaton.Document `json:"model"`
}

// Resource handlers

func (s *Server) handleResourceModel(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	id, dot, err := parseModelURI(req.Params.URI)
	if err != nil {
		return nil, err
	}
	if dot {
		return s.handleResourceModelDOT(ctx, req)
	}

	a, meta, err := s.deps.LoadModel(id)
	if err != nil {
		return nil, resourceError(req.Params.URI, err)
	}
	return toResourceResult(req.Params.URI, modelResource{Metadata: meta, Model: a.Document()})
}

func (s *Server) handleResourceModelDOT(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	id, _, err := parseModelURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	a, _, err := s.deps.LoadModel(id)
	if err != nil {
		return nil, resourceError(req.Params.URI, err)
	}
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: tools.MimeDOT,
				Text:     a.DOT(),
			},
		},
	}, nil
}

func (s *Server) handleResourceTraceSchema(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	data, err := traceio.SchemaJSON()
	if err != nil {
		return nil, fmt.Errorf("serializing resource: %w", err)
	}
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: tools.MimeJSON,
				Text:     string(data),
			},
		},
	}, nil
}

// Helper functions

// parseModelURI extracts the model ID from an alergia://model/ URI and
// reports whether the DOT form was requested.
func parseModelURI(uri string) (string, bool, error) {
	if !strings.HasPrefix(uri, schemeModel) {
		return "", false, tools.ErrInvalidInput("invalid URI: expected " + schemeModel + "{id}")
	}
	parts := strings.Split(strings.TrimPrefix(uri, schemeModel), "/")
	if parts[0] == "" {
		return "", false, tools.ErrInvalidInput("model URI requires a model ID")
	}
	switch {
	case len(parts) == 1:
		return parts[0], false, nil
	case len(parts) == 2 && parts[1] == "dot":
		return parts[0], true, nil
	default:
		return "", false, tools.ErrInvalidInput(fmt.Sprintf("unknown model resource: %s", uri))
	}
}

// resourceError maps a missing model to the protocol's not-found error.
func resourceError(uri string, err error) error {
	var coded *tools.CodedError
	if errors.As(err, &coded) && coded.Code == tools.ErrCodeNotFound {
		return sdkmcp.ResourceNotFoundError(uri)
	}
	return err
}

// toResourceResult serializes content to a ReadResourceResult.
func toResourceResult(uri string, content any) (*sdkmcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing resource: %w", err)
	}

	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: tools.MimeJSON,
				Text:     string(data),
			},
		},
	}, nil
}
