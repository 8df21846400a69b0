package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFileReadMaxBytes = 1 << 20 // 1 MiB
	defaultFileListLimit    = 500
)

// FileReadTool reads files and lists directories below a root directory.
// Paths that resolve outside the root, including through symlinks, are rejected.
type FileReadTool struct {
	root     string
	maxBytes int64
}

var _ ToolExecutor = (*FileReadTool)(nil)

// NewFileReadTool creates a FileReadTool confined to root. An empty root is
// the current working directory; maxBytes <= 0 selects the 1 MiB default.
func NewFileReadTool(root string, maxBytes int64) (*FileReadTool, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving file_read root %q: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("file_read root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file_read root %q is not a directory", root)
	}
	if maxBytes <= 0 {
		maxBytes = defaultFileReadMaxBytes
	}
	return &FileReadTool{root: abs, maxBytes: maxBytes}, nil
}

func (ft *FileReadTool) Definition() Tool {
	return NewFunctionTool(
		"file_read",
		"Reads files and directories in the workspace. Modes: 'view' returns a file's content (or lists a directory), "+
			"'lines' returns a range of lines, 'list' lists a directory, 'stats' returns size and modification time.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"path": {
					Type:        "string",
					Description: "Path relative to the workspace root. Use '.' for the root itself.",
				},
				"mode": {
					Type:        "string",
					Description: "What to read. Defaults to 'view'.",
					Enum:        []string{"view", "lines", "list", "stats"},
				},
				"start_line": {
					Type:        "integer",
					Description: "First line (1-based) for mode 'lines'. Defaults to 1.",
				},
				"end_line": {
					Type:        "integer",
					Description: "Last line (inclusive) for mode 'lines'. Defaults to the end of the file.",
				},
			},
			Required: []string{"path"},
		},
	)
}

func (ft *FileReadTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Path      string `json:"path"`
		Mode      string `json:"mode"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := DecodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	target, err := ft.resolve(args.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope, done := EnterScope(ctx)
	defer done()

	info, err := os.Stat(target)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return nil, fmt.Errorf("cannot access %s: %w", args.Path, err)
	}

	switch args.Mode {
	case "", "view":
		if info.IsDir() {
			return ft.list(scope, target)
		}
		return ft.view(scope, target, info)
	case "list":
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", args.Path)
		}
		return ft.list(scope, target)
	case "lines":
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", args.Path)
		}
		return ft.lines(scope, target, args.StartLine, args.EndLine)
	case "stats":
		return fileStats(ft.relative(target), info), nil
	default:
		return nil, fmt.Errorf("unsupported mode %q", args.Mode)
	}
}

// resolve maps a model-supplied path to an absolute path inside the root.
func (ft *FileReadTool) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}
	var candidate string
	if filepath.IsAbs(path) {
		candidate = filepath.Clean(path)
	} else {
		candidate = filepath.Join(ft.root, path)
	}
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	}
	rel, err := filepath.Rel(ft.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return candidate, nil
}

func (ft *FileReadTool) relative(path string) string {
	rel, err := filepath.Rel(ft.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (ft *FileReadTool) view(scope *Scope, path string, info os.FileInfo) (string, error) {
	if info.Size() > ft.maxBytes {
		return "", fmt.Errorf("%s is %d bytes, larger than the %d byte limit; use mode 'lines'", ft.relative(path), info.Size(), ft.maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", ft.relative(path), err)
	}
	scope.Track(f)

	data, err := io.ReadAll(io.LimitReader(f, ft.maxBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", ft.relative(path), err)
	}
	return string(data), nil
}

func (ft *FileReadTool) lines(scope *Scope, path string, start, end int) (string, error) {
	if start <= 0 {
		start = 1
	}
	if end > 0 && end < start {
		return "", fmt.Errorf("end_line %d is before start_line %d", end, start)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", ft.relative(path), err)
	}
	scope.Track(f)

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), int(ft.maxBytes))
	for n := 1; scanner.Scan(); n++ {
		if n < start {
			continue
		}
		if end > 0 && n > end {
			break
		}
		if int64(b.Len()+len(scanner.Bytes())+1) > ft.maxBytes {
			fmt.Fprintf(&b, "... truncated at line %d\n", n)
			break
		}
		fmt.Fprintf(&b, "%d: %s\n", n, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", ft.relative(path), err)
	}
	return b.String(), nil
}

func (ft *FileReadTool) list(scope *Scope, dir string) (string, error) {
	d, err := os.Open(dir)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", ft.relative(dir), err)
	}
	scope.Track(d)

	entries, err := d.ReadDir(-1)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", ft.relative(dir), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s (%d entries):\n", ft.relative(dir), len(entries))
	for i, e := range entries {
		if i == defaultFileListLimit {
			fmt.Fprintf(&b, "... %d more entries\n", len(entries)-i)
			break
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func fileStats(rel string, info os.FileInfo) map[string]any {
	return map[string]any{
		"path":     rel,
		"is_dir":   info.IsDir(),
		"size":     info.Size(),
		"mode":     info.Mode().String(),
		"modified": info.ModTime().UTC().Format(time.RFC3339),
	}
}
