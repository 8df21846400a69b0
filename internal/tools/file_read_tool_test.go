package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("alpha\nbeta\ngamma\ndelta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "inner.go"), []byte("package sub\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFileReadTool_View(t *testing.T) {
	ft, err := NewFileReadTool(newWorkspace(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ft.Execute(context.Background(), map[string]any{"path": "notes.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alpha\nbeta\ngamma\ndelta\n" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestFileReadTool_ListCurrentDirectory(t *testing.T) {
	ft, _ := NewFileReadTool(newWorkspace(t), 0)
	for _, args := range []map[string]any{
		{"path": "."},
		{"path": ".", "mode": "list"},
	} {
		got, err := ft.Execute(context.Background(), args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		listing := got.(string)
		if !strings.Contains(listing, "notes.txt\n") || !strings.Contains(listing, "sub/\n") {
			t.Errorf("listing missing entries: %q", listing)
		}
		if !strings.Contains(listing, "(2 entries)") {
			t.Errorf("listing should report entry count: %q", listing)
		}
	}
}

func TestFileReadTool_Lines(t *testing.T) {
	ft, _ := NewFileReadTool(newWorkspace(t), 0)
	got, err := ft.Execute(context.Background(), map[string]any{
		"path": "notes.txt", "mode": "lines", "start_line": float64(2), "end_line": float64(3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2: beta\n3: gamma\n" {
		t.Errorf("unexpected lines %q", got)
	}
	if _, err := ft.Execute(context.Background(), map[string]any{
		"path": "notes.txt", "mode": "lines", "start_line": float64(3), "end_line": float64(1),
	}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestFileReadTool_Stats(t *testing.T) {
	ft, _ := NewFileReadTool(newWorkspace(t), 0)
	got, err := ft.Execute(context.Background(), map[string]any{"path": "sub/inner.go", "mode": "stats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := got.(map[string]any)
	if stats["path"] != "sub/inner.go" || stats["size"] != int64(len("package sub\n")) || stats["is_dir"] != false {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestFileReadTool_RejectsEscapes(t *testing.T) {
	root := newWorkspace(t)
	ft, _ := NewFileReadTool(filepath.Join(root, "sub"), 0)
	for _, p := range []string{"../notes.txt", filepath.Join(root, "notes.txt"), "/etc/passwd"} {
		if _, err := ft.Execute(context.Background(), map[string]any{"path": p}); err == nil || !strings.Contains(err.Error(), "outside the workspace") {
			t.Errorf("path %q: expected workspace error, got %v", p, err)
		}
	}
}

func TestFileReadTool_SizeLimit(t *testing.T) {
	ft, _ := NewFileReadTool(newWorkspace(t), 8)
	if _, err := ft.Execute(context.Background(), map[string]any{"path": "notes.txt"}); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestFileReadTool_MissingFileThroughInvoker(t *testing.T) {
	ft, _ := NewFileReadTool(newWorkspace(t), 0)
	reg, _ := RegistryOf(ft)
	inv := NewInvoker(reg)

	res := inv.Invoke(context.Background(), call("file_read", `{"path":"missing.txt"}`))
	if !res.IsError() || res.Failure.Kind != errorsx.KindToolExecutionFailed {
		t.Fatalf("expected tool_execution_failed, got %+v", res)
	}
	res = inv.Invoke(context.Background(), call("file_read", `{"path":"notes.txt","mode":"delete"}`))
	if !res.IsError() || res.Failure.Kind != errorsx.KindInvalidArguments {
		t.Fatalf("expected invalid_arguments for unknown mode, got %+v", res)
	}
}

func TestNewFileReadTool_RootMustBeDirectory(t *testing.T) {
	root := newWorkspace(t)
	if _, err := NewFileReadTool(filepath.Join(root, "notes.txt"), 0); err == nil {
		t.Fatal("expected error for file root")
	}
	if _, err := NewFileReadTool(filepath.Join(root, "nope"), 0); err == nil {
		t.Fatal("expected error for missing root")
	}
}
