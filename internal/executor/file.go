package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// KindFile — тип узла файловых операций.
	KindFile = "file"
)

// Ключи конфигурации file узла.
const (
	fileConfigOp      = "op"
	fileConfigPath    = "path"
	fileConfigContent = "content"
)

// Операции file узла.
const (
	fileOpRead   = "read"
	fileOpWrite  = "write"
	fileOpAppend = "append"
	fileOpDelete = "delete"
	fileOpList   = "list"
)

// FileExecutor — узел файловых операций внутри настроенного корня.
//
// Все пути разрешаются относительно root; выход за его пределы
// (включая .. и симлинк-обходы через абсолютные пути) отклоняется.
//
// Конфигурация:
//
//	{"op": "write", "path": "reports/out.txt", "content": "..."}
//
// Output read: {"content": "...", "size": N}
// Output list: {"entries": ["a.txt", "sub/"], "count": N}
type FileExecutor struct {
	root string
}

// NewFileExecutor создаёт FileExecutor с корневой директорией.
func NewFileExecutor(root string) *FileExecutor {
	return &FileExecutor{root: root}
}

// Kind возвращает тип узла.
func (e *FileExecutor) Kind() string { return KindFile }

// Category возвращает категорию брокера.
func (e *FileExecutor) Category() string { return CategoryFile }

// Execute выполняет файловую операцию.
func (e *FileExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
	}

	if e.root == "" {
		return nil, fmt.Errorf("%w: %s: file root is not configured", ErrExecutionFailed, KindFile)
	}

	op := GetConfigString(req.Config, fileConfigOp)
	if op == "" {
		return nil, fmt.Errorf("%w: %s: op is required", ErrInvalidConfig, KindFile)
	}
	relPath := GetConfigString(req.Config, fileConfigPath)
	if relPath == "" {
		return nil, fmt.Errorf("%w: %s: path is required", ErrInvalidConfig, KindFile)
	}

	fullPath, err := e.resolvePath(relPath)
	if err != nil {
		return nil, err
	}

	switch op {
	case fileOpRead:
		return e.read(fullPath)
	case fileOpWrite:
		return e.write(fullPath, req.Config, false)
	case fileOpAppend:
		return e.write(fullPath, req.Config, true)
	case fileOpDelete:
		return e.delete(fullPath)
	case fileOpList:
		return e.list(fullPath)
	default:
		return nil, fmt.Errorf("%w: %s: unknown op %q", ErrInvalidConfig, KindFile, op)
	}
}

// resolvePath разрешает путь и проверяет, что он не выходит за root.
func (e *FileExecutor) resolvePath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s: path must be relative", ErrInvalidConfig, KindFile)
	}

	rootAbs, err := filepath.Abs(e.root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: resolve root: %v", ErrExecutionFailed, KindFile, err)
	}

	full := filepath.Clean(filepath.Join(rootAbs, relPath))
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s: path %q escapes the configured root", ErrInvalidConfig, KindFile, relPath)
	}
	return full, nil
}

func (e *FileExecutor) read(path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read: %v", ErrExecutionFailed, KindFile, err)
	}
	return NewResponse(map[string]any{
		"content": string(data),
		"size":    len(data),
	}), nil
}

func (e *FileExecutor) write(path string, config map[string]any, appendMode bool) (*Response, error) {
	content := GetConfigString(config, fileConfigContent)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: mkdir: %v", ErrExecutionFailed, KindFile, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: open: %v", ErrExecutionFailed, KindFile, err)
	}
	defer f.Close()

	n, err := f.WriteString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: write: %v", ErrExecutionFailed, KindFile, err)
	}
	return NewResponse(map[string]any{"written": n}), nil
}

func (e *FileExecutor) delete(path string) (*Response, error) {
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("%w: %s: delete: %v", ErrExecutionFailed, KindFile, err)
	}
	return NewResponse(map[string]any{"deleted": true}), nil
}

func (e *FileExecutor) list(path string) (*Response, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: list: %v", ErrExecutionFailed, KindFile, err)
	}

	names := make([]any, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].(string) < names[j].(string)
	})

	return NewResponse(map[string]any{
		"entries": names,
		"count":   len(names),
	}), nil
}
