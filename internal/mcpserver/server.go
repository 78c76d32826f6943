// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes geonote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/geonote/internal/geo"
	"github.com/starford/geonote/internal/geocode"
	"github.com/starford/geonote/internal/notestore"
)

// LocationSearcher resolves free-text place queries to coordinates.
type LocationSearcher interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Server wraps the MCP server with geonote tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *notestore.Service
	locator LocationSearcher
}

// New creates a new MCP server with all geonote tools registered.
// locator may be nil when geocoding is disabled.
func New(svc *notestore.Service, locator LocationSearcher) *Server {
	s := &Server{svc: svc, locator: locator}

	s.mcp = server.NewMCPServer(
		"Geonote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note pinned to a geographic coordinate."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in decimal degrees (-90..90)")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in decimal degrees (-180..180)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by its numeric id. Deleting an unknown id is a no-op."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("notes_near",
		mcp.WithDescription("List notes within a great-circle radius of a point."),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Center latitude")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Center longitude")),
		mcp.WithNumber("radius_km", mcp.Required(), mcp.Description("Radius in kilometers")),
	), s.notesNear)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and addresses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("search_location",
		mcp.WithDescription("Resolve a free-text place name to coordinate candidates."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Place name or address")),
	), s.searchLocation)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.Create(ctx, content, lat, lng)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created note %d", note.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes := s.svc.List(ctx)
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, int64(id)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted note %d", int64(id))), nil
}

func (s *Server) notesNear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	radius, err := req.RequireFloat("radius_km")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if radius < 0 {
		return mcp.NewToolResultError("radius_km must be non-negative"), nil
	}

	notes := s.svc.FilterByRadius(ctx, geo.Point{Lat: lat, Lng: lng}, radius)
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes within radius"), nil
	}
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchLocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.locator == nil {
		return mcp.NewToolResultError("geocoding is disabled"), nil
	}
	results, err := s.locator.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching locations"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
