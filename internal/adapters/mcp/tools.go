// Package mcpadapter exposes the pipeline stages as MCP tools so an agent can
// drive intake and analysis over stdio.
package mcpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const educationalNotice = "Results are educational information only and are not legal advice."

type Services struct {
	Intake         ports.DocumentIntake
	Reader         ports.DocumentReader
	Extraction     ports.ExtractionService
	Classification ports.ClassificationService
	Compliance     ports.ComplianceService
}

type Tools struct {
	svc Services
}

func NewTools(svc Services) *Tools {
	return &Tools{svc: svc}
}

func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(educationalNotice),
	)
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Validate, scan, encrypt and store a legal document."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Original file name including extension")),
		mcp.WithString("content_base64", mcp.Required(), mcp.Description("Document bytes, standard base64")),
		requesterID(),
	), t.uploadDocument)

	s.AddTool(mcp.NewTool("extract_document",
		mcp.WithDescription("Run text extraction (direct or OCR) on a stored document."),
		documentID(), requesterID(), requesterRole(),
	), t.extractDocument)

	s.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Classify the latest extraction of a document by type and subject."),
		documentID(), requesterID(), requesterRole(),
	), t.classifyDocument)

	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Produce an educational compliance analysis with UPL risk screening."),
		documentID(), requesterID(), requesterRole(),
		mcp.WithString("analysis_type",
			mcp.Enum(string(domain.AnalysisComprehensive), string(domain.AnalysisSummary), string(domain.AnalysisDates), string(domain.AnalysisParties)),
			mcp.DefaultString(string(domain.AnalysisComprehensive)),
		),
	), t.analyzeDocument)

	s.AddTool(mcp.NewTool("get_latest_result",
		mcp.WithDescription("Fetch the latest stored result of a pipeline stage."),
		mcp.WithReadOnlyHintAnnotation(true),
		documentID(), requesterID(), requesterRole(),
		mcp.WithString("kind", mcp.Required(),
			mcp.Enum(string(domain.ResultExtraction), string(domain.ResultClassification), string(domain.ResultAnalysis)),
		),
	), t.latestResult)
}

func documentID() mcp.ToolOption {
	return mcp.WithString("document_id", mcp.Required(), mcp.Description("Document UUID returned by upload_document"))
}

func requesterID() mcp.ToolOption {
	return mcp.WithString("user_id", mcp.Required(), mcp.Description("Identity of the caller"))
}

func requesterRole() mcp.ToolOption {
	return mcp.WithString("role",
		mcp.Enum(string(domain.RoleClient), string(domain.RoleParalegal), string(domain.RoleAttorney), string(domain.RoleComplianceOfficer), string(domain.RoleAdmin)),
		mcp.DefaultString(string(domain.RoleClient)),
	)
}

func (t *Tools) uploadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := req.RequireString("content_base64")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError("content_base64 is not valid base64"), nil
	}

	outcome, err := t.svc.Intake.Upload(ctx, ports.UploadRequest{
		Filename:   filename,
		UploaderID: userID,
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return toolError("upload_document", err, outcome), nil
	}
	return jsonResult(outcome)
}

func (t *Tools) extractDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, requester, errResult := documentArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := t.svc.Extraction.Process(ctx, docID, requester)
	if err != nil {
		return toolError("extract_document", err, nil), nil
	}
	return jsonResult(result)
}

func (t *Tools) classifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, requester, errResult := documentArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := t.svc.Classification.Classify(ctx, docID, requester)
	if err != nil {
		return toolError("classify_document", err, nil), nil
	}
	return jsonResult(result)
}

func (t *Tools) analyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, requester, errResult := documentArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	raw := req.GetString("analysis_type", "")
	analysisType, ok := domain.ParseAnalysisType(raw)
	if !ok {
		return mcp.NewToolResultErrorf("unknown analysis_type %q", raw), nil
	}
	result, err := t.svc.Compliance.Analyze(ctx, docID, analysisType, requester)
	if err != nil {
		return toolError("analyze_document", err, nil), nil
	}
	return jsonResult(result)
}

func (t *Tools) latestResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, requester, errResult := documentArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	raw, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, ok := domain.ParseResultKind(raw)
	if !ok {
		return mcp.NewToolResultErrorf("unknown kind %q", raw), nil
	}
	view, err := t.svc.Reader.LatestResult(ctx, docID, kind, requester)
	if err != nil {
		return toolError("get_latest_result", err, nil), nil
	}
	return jsonResult(view)
}

// documentArgs reads the arguments every document tool shares. The system
// role is never accepted from a tool caller.
func documentArgs(req mcp.CallToolRequest) (string, domain.Requester, *mcp.CallToolResult) {
	docID, err := req.RequireString("document_id")
	if err != nil {
		return "", domain.Requester{}, mcp.NewToolResultError(err.Error())
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return "", domain.Requester{}, mcp.NewToolResultError(err.Error())
	}
	role := domain.Role(req.GetString("role", string(domain.RoleClient)))
	switch role {
	case domain.RoleClient, domain.RoleParalegal, domain.RoleAttorney, domain.RoleComplianceOfficer, domain.RoleAdmin:
	default:
		return "", domain.Requester{}, mcp.NewToolResultErrorf("role %q is not allowed", role)
	}
	return docID, domain.Requester{ID: userID, Role: role}, nil
}

func toolError(tool string, err error, detail any) *mcp.CallToolResult {
	msg := fmt.Sprintf("%s failed: %v", tool, err)
	if detail != nil {
		if raw, mErr := json.Marshal(detail); mErr == nil {
			msg += "\n" + string(raw)
		}
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
