// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the catalyst pipeline to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/classifier"
	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/storage"
	"github.com/starford/catalyst/internal/syncer"
	"github.com/starford/catalyst/internal/watcher"
)

const contractURI = "catalyst://note-format"

// Server wraps the MCP server with catalyst tools.
type Server struct {
	mcp        *server.MCPServer
	extractor  *metadata.Extractor
	classifier *classifier.Classifier
	syncer     *syncer.Orchestrator
	logger     *slog.Logger

	root    string
	project string
	targets []models.SyncTarget
}

// Option configures a Server.
type Option func(*Server)

// WithRoot sets the source tree note paths are resolved against.
func WithRoot(root string) Option {
	return func(s *Server) { s.root = root }
}

// WithProject sets the project name used for vault placement.
func WithProject(name string) Option {
	return func(s *Server) { s.project = name }
}

// WithTargets sets the enabled sync targets.
func WithTargets(targets []models.SyncTarget) Option {
	return func(s *Server) { s.targets = targets }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new MCP server with all catalyst tools registered.
func New(extractor *metadata.Extractor, cls *classifier.Classifier, orch *syncer.Orchestrator, opts ...Option) *Server {
	s := &Server{
		extractor:  extractor,
		classifier: cls,
		syncer:     orch,
		root:       ".",
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}

	s.mcp = server.NewMCPServer(
		"Catalyst",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the knowledge notes in the source tree, optionally below a folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a knowledge note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the source tree (e.g. commands/deploy.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("analyze_note",
		mcp.WithDescription("Extract a note's metadata the way a sync would, including classification "+
			"for notes without a usable header and suggested tags."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the source tree")),
	), s.analyzeNote)

	s.mcp.AddTool(mcp.NewTool("classify_note",
		mcp.WithDescription("Run the content classifier on a note, ignoring any header it has."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the source tree")),
	), s.classifyNote)

	s.mcp.AddTool(mcp.NewTool("plan_sync",
		mcp.WithDescription("Show, per target, whether syncing a note would write or skip it, "+
			"with a line diff of the vault copy. Nothing is written."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the source tree")),
		mcp.WithString("target", mcp.Description("Optional target name (empty for all enabled targets)")),
	), s.planSync)

	s.mcp.AddTool(mcp.NewTool("sync_note",
		mcp.WithDescription("Sync one note to the enabled vaults. Unchanged notes are skipped."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the source tree")),
		mcp.WithString("target", mcp.Description("Optional target name (empty for all enabled targets)")),
	), s.syncNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the knowledge note format contract. "+
			"Call this before writing notes so they sync without classification."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Header and body format of knowledge notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

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

// resolve maps a tool path onto the source tree, rejecting traversal.
func (s *Server) resolve(path string) (*storage.FS, string, error) {
	store, err := storage.NewFS(s.root)
	if err != nil {
		return nil, "", err
	}
	abs, err := store.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return store, abs, nil
}

func (s *Server) selectTargets(name string) ([]models.SyncTarget, error) {
	if name == "" {
		return s.targets, nil
	}
	for _, t := range s.targets {
		if t.Name == name {
			return []models.SyncTarget{t}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownTarget, name)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	events, err := s.syncer.Scan(s.root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, ev := range events {
		rel := ev.Rel()
		if folder != "" && !strings.HasPrefix(rel, folder+"/") {
			continue
		}
		paths = append(paths, rel)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	store, _, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type analysis struct {
	Metadata       *models.KnowledgeMetadata    `json:"metadata"`
	Classification *models.ClassificationResult `json:"classification,omitempty"`
	SuggestedTags  []string                     `json:"suggested_tags,omitempty"`
}

func (s *Server) analyzeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	store, abs, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.syncer.Resolve(store.Root(), abs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(analysis{
		Metadata:       note.Metadata,
		Classification: note.Classification,
		SuggestedTags:  s.extractor.SuggestTags(note.Body, note.Metadata.Tags),
	})
}

func (s *Server) classifyNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	store, abs, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.extractor.Parse(abs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev := watcher.Event{Path: abs, Root: store.Root()}
	return jsonResult(s.classifier.Classify(ev.Rel(), doc.Body))
}

func (s *Server) planSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targets, err := s.selectTargets(req.GetString("target", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	store, abs, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plans, err := s.syncer.PlanFile(store.Root(), abs, targets, s.project)
	if plans == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		s.logger.Warn("mcp: plan finished with target errors", slog.String("error", err.Error()))
	}
	return jsonResult(plans)
}

func (s *Server) syncNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targets, err := s.selectTargets(req.GetString("target", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	store, abs, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev := watcher.Event{Kind: watcher.KindModified, Path: abs, Root: store.Root()}
	outcomes, err := s.syncer.HandleEvent(ctx, ev, targets, s.project)
	if err != nil {
		s.logger.Warn("mcp: sync finished with target errors", slog.String("error", err.Error()))
	}
	return jsonResult(outcomes)
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
