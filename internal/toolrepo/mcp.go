package toolrepo

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// deprecatedMarker — маркер устаревшего инструмента в описании.
// MCP не имеет стандартного поля deprecation, поэтому реестр помечает
// устаревшие инструменты тегом в description.
const deprecatedMarker = "[deprecated]"

// MCP — реестр инструментов поверх MCP-сервера.
//
// Инструменты разрешаются по имени через tools/list, вызываются через
// tools/call. Сервер — внешний коллаборатор; его недоступность — это
// ошибка вызова, не повод выполнять узел "вхолостую".
type MCP struct {
	client *mcpclient.Client
}

// NewMCP создаёт реестр поверх MCP-сервера по HTTP.
func NewMCP(ctx context.Context, baseURL string) (*MCP, error) {
	c, err := mcpclient.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "nodeflow",
		Version: "1.0.0",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	return &MCP{client: c}, nil
}

// Resolve реализует Repository.
func (m *MCP) Resolve(ctx context.Context, id string) (*ToolDef, error) {
	result, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	for _, tool := range result.Tools {
		if tool.Name != id {
			continue
		}

		def := &ToolDef{
			ID:          tool.Name,
			Description: tool.Description,
			Deprecated:  strings.Contains(strings.ToLower(tool.Description), deprecatedMarker),
		}
		if def.Deprecated {
			return nil, fmt.Errorf("%w: %s", ErrToolDeprecated, id)
		}
		return def, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
}

// Call реализует Repository.
func (m *MCP) Call(ctx context.Context, id string, args map[string]any) (any, error) {
	// Разрешение перед вызовом: неизвестный или устаревший ID —
	// жёсткая ошибка до обращения к инструменту
	if _, err := m.Resolve(ctx, id); err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = id
	req.Params.Arguments = args

	result, err := m.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", id, err)
	}

	if result.IsError {
		return nil, fmt.Errorf("tool %s returned error: %s", id, flattenContent(result.Content))
	}

	return flattenContent(result.Content), nil
}

// Close закрывает соединение с MCP-сервером.
func (m *MCP) Close() error {
	return m.client.Close()
}

// flattenContent собирает текстовые блоки результата в одну строку.
func flattenContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
