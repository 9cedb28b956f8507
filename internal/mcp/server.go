package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/namandhakad712/Rankify-sub003/internal/config"
	"github.com/namandhakad712/Rankify-sub003/internal/descriptions"
	"github.com/namandhakad712/Rankify-sub003/internal/engine"
	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	engine    *engine.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, eng *engine.Service) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		engine:    eng,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	diagramLoadTool := mcp.NewTool(
		"diagram_load",
		mcp.WithDescription(descriptions.DiagramLoadDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(diagramLoadTool, s.handleDiagramLoad)

	diagramDetectTool := mcp.NewTool(
		"diagram_detect",
		mcp.WithDescription(descriptions.DiagramDetectDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Identifier returned by diagram_load"),
		),
		mcp.WithString("pages",
			mcp.Description("Comma-separated page numbers or ranges like '1-5,8' (all pages if empty)"),
		),
	)
	s.mcpServer.AddTool(diagramDetectTool, s.handleDiagramDetect)

	diagramMatchTool := mcp.NewTool(
		"diagram_match",
		mcp.WithDescription(descriptions.DiagramMatchDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Identifier returned by diagram_load"),
		),
	)
	s.mcpServer.AddTool(diagramMatchTool, s.handleDiagramMatch)

	diagramRenderTool := mcp.NewTool(
		"diagram_render",
		mcp.WithDescription(descriptions.DiagramRenderDescription),
		mcp.WithString("region_id",
			mcp.Required(),
			mcp.Description("Region identifier"),
		),
		mcp.WithString("tier",
			mcp.Description("Resolution tier: thumbnail, preview or full (default preview)"),
		),
	)
	s.mcpServer.AddTool(diagramRenderTool, s.handleDiagramRender)

	regionAddTool := mcp.NewTool(
		"region_add",
		mcp.WithDescription(descriptions.RegionAddDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Identifier returned by diagram_load"),
		),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("1-based page number"),
		),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Left edge in [0,1]")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Top edge in [0,1]")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Width in [0,1]")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Height in [0,1]")),
		mcp.WithString("type",
			mcp.Description("Diagram type (graph, flowchart, scientific, geometric, table, circuit, image, other)"),
		),
		mcp.WithString("label",
			mcp.Description("Optional caption label like 'Figure 2.1'"),
		),
	)
	s.mcpServer.AddTool(regionAddTool, s.handleRegionAdd)

	regionUpdateTool := mcp.NewTool(
		"region_update",
		mcp.WithDescription(descriptions.RegionUpdateDescription),
		mcp.WithString("region_id",
			mcp.Required(),
			mcp.Description("Region identifier"),
		),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Left edge in [0,1]")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Top edge in [0,1]")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Width in [0,1]")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Height in [0,1]")),
	)
	s.mcpServer.AddTool(regionUpdateTool, s.handleRegionUpdate)

	regionDeleteTool := mcp.NewTool(
		"region_delete",
		mcp.WithDescription(descriptions.RegionDeleteDescription),
		mcp.WithString("region_id",
			mcp.Required(),
			mcp.Description("Region identifier"),
		),
	)
	s.mcpServer.AddTool(regionDeleteTool, s.handleRegionDelete)

	regionAssignTool := mcp.NewTool(
		"region_assign",
		mcp.WithDescription(descriptions.RegionAssignDescription),
		mcp.WithString("question_id",
			mcp.Required(),
			mcp.Description("Question identifier"),
		),
		mcp.WithString("region_id",
			mcp.Required(),
			mcp.Description("Region identifier"),
		),
	)
	s.mcpServer.AddTool(regionAssignTool, s.handleRegionAssign)

	serverInfoTool := mcp.NewTool(
		"server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions

func (s *Server) handleDiagramLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot access %s: %v", path, err)), nil
	}
	if info.Size() > s.config.MaxFileSize {
		return mcp.NewToolResultError(fmt.Sprintf("file exceeds maximum size of %d bytes", s.config.MaxFileSize)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}

	result, err := s.engine.LoadDocument(engine.LoadDocumentRequest{Data: data})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Loaded document: %s\n", result.DocumentID)
	responseText += fmt.Sprintf("Pages: %d\n", result.PageCount)
	responseText += fmt.Sprintf("Questions extracted: %d\n", len(result.Questions))
	flagged := 0
	for _, q := range result.Questions {
		if q.HasDiagram {
			flagged++
		}
	}
	responseText += fmt.Sprintf("Questions mentioning figures/tables: %d\n", flagged)
	responseText += "\nNext: run 'diagram_detect' to find diagram regions, then 'diagram_match'."

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleDiagramDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var pages []int
	if spec, ok := request.GetArguments()["pages"].(string); ok && spec != "" {
		pages, err = parsePageSpec(spec)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	result, err := s.engine.DetectDocument(ctx, engine.DetectRequest{DocumentID: documentID, Pages: pages})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatDetectResult(result)), nil
}

func (s *Server) handleDiagramMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.engine.MatchQuestions(engine.MatchRequest{DocumentID: documentID})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatMatchResult(result)), nil
}

func (s *Server) handleDiagramRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regionID, err := request.RequireString("region_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tier := model.TierPreview
	if raw, ok := request.GetArguments()["tier"].(string); ok && raw != "" {
		tier = model.ResolutionTier(strings.ToLower(raw))
		if !model.ValidTier(tier) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown tier %q (use thumbnail, preview or full)", raw)), nil
		}
	}

	result, err := s.engine.RenderRegion(ctx, engine.RenderRequest{RegionID: regionID, Tier: tier})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Rendered region %s at %s tier: %dx%d pixels (cache %s)\n",
		result.RegionID, result.Tier, result.Width, result.Height, hitOrMiss(result.FromCache))
	responseText += "PNG (base64):\n"
	responseText += base64.StdEncoding.EncodeToString(result.PNG)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleRegionAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	box, err := boxFromArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	dtype, _ := args["type"].(string)
	label, _ := args["label"].(string)

	result, err := s.engine.AddManualRegion(engine.AddRegionRequest{
		DocumentID: documentID,
		PageNumber: page,
		Box:        box,
		Type:       model.DiagramType(dtype),
		Label:      label,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatRegionResult("Added region", result)), nil
}

func (s *Server) handleRegionUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regionID, err := request.RequireString("region_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	box, err := boxFromArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.engine.UpdateRegionBox(engine.UpdateRegionRequest{RegionID: regionID, Box: box})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatRegionResult("Updated region", result)), nil
}

func (s *Server) handleRegionDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regionID, err := request.RequireString("region_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.engine.DeleteRegion(regionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted region %s", regionID)), nil
}

func (s *Server) handleRegionAssign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, err := request.RequireString("question_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	regionID, err := request.RequireString("region_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.engine.AssignRegion(engine.AssignRequest{QuestionID: questionID, RegionID: regionID}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Assigned region %s to question %s", regionID, questionID)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.engine.Info()

	text := fmt.Sprintf("%s v%s - Server Information\n\n", info.Name, info.Version)
	text += fmt.Sprintf("Loaded documents: %d\n", info.Documents)
	text += fmt.Sprintf("Stored regions: %d\n", info.Regions)
	text += fmt.Sprintf("Vision backend: %s (%s)\n", s.config.VisionProvider, enabledOrDisabled(info.VisionEnabled))
	text += fmt.Sprintf("Render cache: %d/%d entries, %d bytes used, %.1f%% hit rate\n",
		info.CacheStats.Size, info.CacheStats.MaxEntries, info.CacheStats.UsedBytes, info.CacheStats.HitRate)
	text += "\nAvailable tools:\n"
	text += "• diagram_load - load a question paper PDF\n"
	text += "• diagram_detect - AI diagram detection over pages\n"
	text += "• diagram_match - assign regions to questions\n"
	text += "• diagram_render - render a region as base64 PNG\n"
	text += "• region_add / region_update / region_delete / region_assign - manual region editing\n"
	text += "• server_info - this summary\n"

	return mcp.NewToolResultText(text), nil
}

// Formatting methods

func (s *Server) formatDetectResult(result *engine.DetectResult) string {
	total := 0
	for _, regions := range result.Regions {
		total += len(regions)
	}

	text := fmt.Sprintf("Detection complete for document %s\n", result.DocumentID)
	text += fmt.Sprintf("Pages processed: %d\n", len(result.Regions))
	text += fmt.Sprintf("Regions found: %d\n", total)

	if total > 0 {
		text += "\nRegions:\n"
		for page := range result.Regions {
			for _, r := range result.Regions[page] {
				text += fmt.Sprintf("• %s: page %d, %s, confidence %d/5", r.ID, r.PageNumber, r.Type, r.Confidence)
				if r.Label != "" {
					text += fmt.Sprintf(", label %q", r.Label)
				}
				text += "\n"
			}
		}
	}

	if len(result.Failures) > 0 {
		text += fmt.Sprintf("\nFailed pages (%d):\n", len(result.Failures))
		for _, f := range result.Failures {
			text += fmt.Sprintf("• %s\n", f.String())
		}
	}
	return text
}

func (s *Server) formatMatchResult(result *engine.MatchResult) string {
	matched := 0
	for _, q := range result.Questions {
		if len(q.DiagramRegionIDs) > 0 {
			matched++
		}
	}

	text := "Matching complete\n"
	text += fmt.Sprintf("Questions with regions: %d/%d\n", matched, len(result.Questions))

	if len(result.NeedsManual) > 0 {
		text += fmt.Sprintf("\nNeeds manual diagram assignment (%d):\n", len(result.NeedsManual))
		for _, qid := range result.NeedsManual {
			text += fmt.Sprintf("• %s\n", qid)
		}
	}
	if len(result.Orphans) > 0 {
		text += fmt.Sprintf("\nOrphan regions (%d):\n", len(result.Orphans))
		for _, r := range result.Orphans {
			text += fmt.Sprintf("• %s: page %d, %s", r.ID, r.PageNumber, r.Type)
			if r.Label != "" {
				text += fmt.Sprintf(", label %q", r.Label)
			}
			text += "\n"
		}
		text += "\nUse 'region_assign' to attach orphans to questions."
	}
	return text
}

func (s *Server) formatRegionResult(verb string, result *engine.RegionResult) string {
	r := result.Region
	text := fmt.Sprintf("%s %s\n", verb, r.ID)
	text += fmt.Sprintf("Page: %d\n", r.PageNumber)
	text += fmt.Sprintf("Box: x=%.4f y=%.4f w=%.4f h=%.4f\n", r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height)
	text += fmt.Sprintf("Version: %d\n", r.Version)
	text += fmt.Sprintf("Method: %s\n", r.DetectionMethod)

	if len(result.Changes) > 0 {
		text += "\nSanitizer corrections:\n"
		for _, c := range result.Changes {
			text += fmt.Sprintf("• %s: %.4f -> %.4f (%s)\n", c.Field, c.From, c.To, c.Reason)
		}
	}
	return text
}

// Helpers

// parsePageSpec parses "1-5,8,11-12" into a sorted page list
func parsePageSpec(spec string) ([]int, error) {
	var pages []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:])
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		if start < 1 || end < start {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		for p := start; p <= end; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("empty page specification %q", spec)
	}
	return pages, nil
}

func boxFromArgs(request mcp.CallToolRequest) (model.NormalizedBox, error) {
	var box model.NormalizedBox
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"x", &box.X}, {"y", &box.Y}, {"width", &box.Width}, {"height", &box.Height},
	} {
		v, err := request.RequireFloat(f.name)
		if err != nil {
			return box, err
		}
		*f.dst = v
	}
	return box, nil
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func enabledOrDisabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting diagram engine MCP server in stdio mode")
		log.Printf("Vision provider: %s", s.config.VisionProvider)
	}

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	log.Printf("Starting diagram engine MCP server on %s", addr)

	sse := server.NewSSEServer(s.mcpServer)
	if err := sse.Start(addr); err != nil {
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	}
	return nil
}
