// Package lspclient defines the narrow LSP Oracle contract the Planner and
// Reference Updater consult when available (spec §6): four entry points
// mirroring textDocument/definition, textDocument/references,
// textDocument/rename and textDocument/codeAction. codeNERD's own LSP
// manager (internal/world/lsp/manager.go) projects language-server output
// into its Mangle fact store, a different purpose entirely, so this
// contract and its no-op default are fresh authorship rather than adapted
// from that file — grounded instead on the general "narrow collaborator
// interface behind a struct" shape codeNERD uses for its MCP transports
// (internal/mcp/client.go).
package lspclient

import (
	"context"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/model"
)

// Position is a zero-based LSP text position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Location is a file plus a range within it.
type Location struct {
	FilePath string          `json:"file_path"`
	Range    model.CodeRange `json:"range"`
}

// CodeAction is one LSP code action, optionally carrying a concrete edit.
type CodeAction struct {
	Title string              `json:"title"`
	Kind  string              `json:"kind"`
	Edit  *model.WorkspaceEdit `json:"edit,omitempty"`
}

// Oracle is the collaborator contract for language-server-backed queries.
// Every method must tolerate a cancelled/expired ctx and return
// lsp_unavailable rather than blocking indefinitely.
type Oracle interface {
	Definition(ctx context.Context, file string, pos Position) (*Location, error)
	References(ctx context.Context, file string, pos Position) ([]Location, error)
	Rename(ctx context.Context, file string, pos Position, newName string) (*model.WorkspaceEdit, error)
	CodeAction(ctx context.Context, file string, rng model.CodeRange, kind string) ([]CodeAction, error)
}

// NoOp is the default Oracle: every call reports lsp_unavailable so
// callers fall back to their documented non-LSP path. It is never nil —
// Planner and Reference Updater treat "no LSP configured" identically to
// "LSP request timed out".
type NoOp struct{}

func unavailable(op string) error {
	return apierr.New(apierr.CodeLspUnavailable, "no LSP oracle configured for %s", op)
}

func (NoOp) Definition(ctx context.Context, file string, pos Position) (*Location, error) {
	return nil, unavailable("textDocument/definition")
}

func (NoOp) References(ctx context.Context, file string, pos Position) ([]Location, error) {
	return nil, unavailable("textDocument/references")
}

func (NoOp) Rename(ctx context.Context, file string, pos Position, newName string) (*model.WorkspaceEdit, error) {
	return nil, unavailable("textDocument/rename")
}

func (NoOp) CodeAction(ctx context.Context, file string, rng model.CodeRange, kind string) ([]CodeAction, error) {
	return nil, unavailable("textDocument/codeAction")
}

var _ Oracle = NoOp{}
