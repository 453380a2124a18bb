package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/veloplan/internal/adapter"
	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/compliance"
)

// New creates an MCP server with all tools and resources registered.
// athleteID scopes every query; tools may override it per call.
func New(ds DataSource, cat *catalog.Catalog, athleteID, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("VeloPlan", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("VeloPlan training server. Query training load, weekly plans, compliance, readiness, and the workout catalog. All data is scoped to the configured athlete unless a tool call overrides it."),
	)

	h := &handlers{
		ds:             ds,
		catalog:        cat,
		defaultAthlete: athleteID,
		adapterCfg:     adapter.DefaultConfig(),
		complianceCfg:  compliance.DefaultConfig(),
		log:            log,
	}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetLoadStatus, Handler: h.getLoadStatus},
		server.ServerTool{Tool: toolGetLoadForecast, Handler: h.getLoadForecast},
		server.ServerTool{Tool: toolGetWeeklyPlan, Handler: h.getWeeklyPlan},
		server.ServerTool{Tool: toolGetCompliance, Handler: h.getCompliance},
		server.ServerTool{Tool: toolGetComplianceTrend, Handler: h.getComplianceTrend},
		server.ServerTool{Tool: toolGetActivities, Handler: h.getActivities},
		server.ServerTool{Tool: toolGetReadiness, Handler: h.getReadiness},
		server.ServerTool{Tool: toolSuggestAdaptation, Handler: h.suggestAdaptation},
		server.ServerTool{Tool: toolFindWorkouts, Handler: h.findWorkouts},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resTrainingStatus, Handler: h.trainingStatus},
		server.ServerResource{Resource: resWeekPlan, Handler: h.weekPlan},
		server.ServerResource{Resource: resWorkoutCatalog, Handler: h.workoutCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds             DataSource
	catalog        *catalog.Catalog
	defaultAthlete string
	adapterCfg     adapter.Config
	complianceCfg  compliance.Config
	log            *slog.Logger
}

// --- Resource definitions ---

var resTrainingStatus = mcp.NewResource(
	"veloplan://training_status",
	"Training Status",
	mcp.WithResourceDescription("Current fitness, fatigue and form, today's scheduled session, and this week's plan summary"),
	mcp.WithMIMEType("application/json"),
)

var resWeekPlan = mcp.NewResource(
	"veloplan://week_plan",
	"Current Week Plan",
	mcp.WithResourceDescription("The full plan for the current week with all scheduled sessions"),
	mcp.WithMIMEType("application/json"),
)

var resWorkoutCatalog = mcp.NewResource(
	"veloplan://workout_catalog",
	"Workout Catalog",
	mcp.WithResourceDescription("All workout templates with segments, durations and target stress"),
	mcp.WithMIMEType("application/json"),
)
