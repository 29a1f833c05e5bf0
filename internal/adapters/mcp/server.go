package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

const defaultListLimit = 20

// Server exposes the read side of the timeline as MCP tools for assistants.
type Server struct {
	mcpServer  *server.MCPServer
	catalog    ports.SnapshotCatalog
	comparison ports.ComparisonService
	trends     ports.TrendService
	sess       domain.Session
}

func NewServer(
	version string,
	userID string,
	catalog ports.SnapshotCatalog,
	comparison ports.ComparisonService,
	trends ports.TrendService,
) *Server {
	s := &Server{
		mcpServer:  server.NewMCPServer("ride-progress", version, server.WithToolCapabilities(false)),
		catalog:    catalog,
		comparison: comparison,
		trends:     trends,
		sess:       domain.NewSession(userID, ""),
	}
	s.registerTools()
	return s
}

// Serve runs the server over stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	metricIDs := make([]string, 0, len(domain.Metrics()))
	for _, m := range domain.Metrics() {
		metricIDs = append(metricIDs, string(m.ID))
	}

	s.mcpServer.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List saved progress snapshots, newest first"),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.handleListSnapshots)

	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Get one snapshot with its extracted metrics"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot ID")),
	), s.handleGetSnapshot)

	s.mcpServer.AddTool(mcp.NewTool("compare_snapshot",
		mcp.WithDescription("Compare a snapshot with the previous snapshot of the same screen type"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot ID")),
	), s.handleCompareSnapshot)

	s.mcpServer.AddTool(mcp.NewTool("metric_trend",
		mcp.WithDescription("Trend of one metric across the timeline"),
		mcp.WithString("metric", mcp.Required(), mcp.Enum(metricIDs...), mcp.Description("Metric ID")),
		mcp.WithString("mode",
			mcp.Enum(string(domain.TrendTimeSeries), string(domain.TrendBetweenReports)),
			mcp.Description("time_series (default) or between_reports"),
		),
	), s.handleMetricTrend)
}

func (s *Server) handleListSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := s.catalog.List(ctx, s.sess, limit)
	if err != nil {
		return mcp.NewToolResultError(domain.Reason(err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No snapshots saved yet."), nil
	}

	var b strings.Builder
	for _, entry := range entries {
		snap := entry.Snapshot
		fmt.Fprintf(&b, "%s  %s  %s  confidence=%.2f\n",
			snap.ID, captureLabel(snap), snap.ScreenType, snap.OverallConfidence)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.catalog.Get(ctx, s.sess, id)
	if err != nil {
		return mcp.NewToolResultError(domain.Reason(err)), nil
	}
	return jsonResult(entry)
}

func (s *Server) handleCompareSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comparison, err := s.comparison.Compare(ctx, s.sess, id)
	if err != nil {
		return mcp.NewToolResultError(domain.Reason(err)), nil
	}
	if !comparison.Available {
		message := comparison.Message
		if message == "" {
			message = "No previous snapshot to compare with."
		}
		return mcp.NewToolResultText(message), nil
	}
	if len(comparison.Deltas) == 0 {
		return mcp.NewToolResultText("No metric changes since " + comparison.ReferenceID + "."), nil
	}

	var b strings.Builder
	for _, d := range comparison.Deltas {
		b.WriteString(d.Text)
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleMetricTrend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := domain.TrendMode(req.GetString("mode", string(domain.TrendTimeSeries)))

	trend, err := s.trends.Trend(ctx, s.sess, domain.MetricID(metric), mode)
	if err != nil {
		return mcp.NewToolResultError(domain.Reason(err)), nil
	}
	return jsonResult(trend)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func captureLabel(s domain.Snapshot) string {
	if s.CapturedAt != nil {
		return s.CapturedAt.Format("2006-01-02 15:04")
	}
	return "unknown date (added " + s.CreatedAt.Format("2006-01-02") + ")"
}
