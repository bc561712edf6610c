package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
)

const (
	ServerName    = "ecommerce-mcp-server"
	ServerVersion = "0.1.0"
)

type searchIn struct {
	ProductName string `json:"product_name" jsonschema:"Name of the product to search for"`
}

type quantityIn struct {
	Product  string `json:"product" jsonschema:"Product name"`
	Quantity *int   `json:"quantity,omitempty" jsonschema:"Quantity; add defaults to 1, remove drops the whole line when omitted"`
}

type discountIn struct {
	Code string `json:"code" jsonschema:"Discount code"`
}

type recommendIn struct {
	Category *string `json:"category,omitempty" jsonschema:"Specific category (optional)"`
}

type noArgs struct{}

// NewServer exposes every toolbox tool over MCP. All calls share one cart
// session, the way a single desktop client expects.
func NewServer(tb *usecase.Toolbox, sessionID string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil)

	addTool[searchIn](s, tb, sessionID, usecase.ToolSearchProduct)
	addTool[quantityIn](s, tb, sessionID, usecase.ToolAddToCart)
	addTool[quantityIn](s, tb, sessionID, usecase.ToolRemoveFromCart)
	addTool[discountIn](s, tb, sessionID, usecase.ToolApplyDiscount)
	addTool[noArgs](s, tb, sessionID, usecase.ToolViewCart)
	addTool[noArgs](s, tb, sessionID, usecase.ToolCalculateTotal)
	addTool[recommendIn](s, tb, sessionID, usecase.ToolRecommend)
	addTool[noArgs](s, tb, sessionID, usecase.ToolClearCart)
	addTool[noArgs](s, tb, sessionID, usecase.ToolShowHistory)
	return s
}

func addTool[In any](s *mcp.Server, tb *usecase.Toolbox, sessionID, name string) {
	spec, ok := tb.Tool(name)
	if !ok {
		panic(fmt.Sprintf("mcp: toolbox has no tool %q", name))
	}
	mcp.AddTool(s, &mcp.Tool{Name: spec.Name, Description: spec.Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			args, err := json.Marshal(in)
			if err != nil {
				return nil, nil, fmt.Errorf("encode arguments: %w", err)
			}
			res, err := tb.Call(ctx, sessionID, name, args)
			if err != nil {
				logging.FromCtx(ctx).Error("tool call failed", "tool", name, "err", err)
				return nil, nil, err
			}
			return textResult(res)
		})
}

func textResult(res usecase.Result) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

// Run serves on stdin/stdout until the client disconnects or ctx ends.
func Run(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
