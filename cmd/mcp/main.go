// Command mcp is a stdio MCP shim in front of the HTTP API. It speaks
// newline-delimited JSON-RPC 2.0 on stdin/stdout and proxies tool calls
// to the running server.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Request represents a minimal JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a minimal JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error payload.
type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InitializeResult is returned for the "initialize" method.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      map[string]interface{} `json:"serverInfo"`
}

// Tool describes an MCP tool.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ListToolsResult is returned by "tools/list".
type ListToolsResult struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// ToolCallParams are the parameters for "tools/call".
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ContentItem represents a piece of tool output.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolCallResult wraps tool output content.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
}

// MCPServer handles MCP requests over stdio.
type MCPServer struct {
	baseURL string
	client  *http.Client
	in      *bufio.Reader
	out     *bufio.Writer
	outMu   sync.Mutex
	tools   []Tool
}

func rocYearProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "ROC calendar year, e.g. 113 for 2024.",
	}
}

func main() {
	// Stdout carries the protocol, logs must go to stderr.
	log.SetOutput(os.Stderr)

	baseURL := strings.TrimRight(getEnv("MOPS_API_BASE_URL", "http://localhost:8080/api/v1"), "/")
	server := &MCPServer{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		in:  bufio.NewReader(os.Stdin),
		out: bufio.NewWriter(os.Stdout),
		tools: []Tool{
			{
				Name:        "financial_statement",
				Description: "Fetch one hierarchical financial statement for a Taiwan-listed company.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"stock_id": map[string]interface{}{
							"type":        "string",
							"description": "Stock ID, e.g. 2330.",
						},
						"report": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"balance-sheet", "income-statement", "cash-flow", "equity-statement", "simplified"},
							"description": "Statement to fetch (default income-statement).",
						},
						"year": rocYearProperty(),
						"quarter": map[string]interface{}{
							"type":        "integer",
							"minimum":     1,
							"maximum":     4,
							"description": "Quarter 1-4 (default 4).",
						},
					},
					"required": []string{"stock_id", "year"},
				},
			},
			{
				Name:        "monthly_revenue",
				Description: "Fetch monthly revenue for one company or a whole market.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"year": rocYearProperty(),
						"month": map[string]interface{}{
							"type":    "integer",
							"minimum": 1,
							"maximum": 12,
						},
						"market": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"sii", "otc"},
							"description": "Listed (sii) or OTC market (default sii).",
						},
						"stock_id": map[string]interface{}{
							"type":        "string",
							"description": "Restrict the result to one company.",
						},
					},
					"required": []string{"year", "month"},
				},
			},
			{
				Name:        "roe_series",
				Description: "Quarterly return-on-equity series for one or more companies.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"stocks": map[string]interface{}{
							"type":        "string",
							"description": "Comma-separated stock IDs, e.g. 2330,2317.",
						},
						"year": rocYearProperty(),
						"quarter": map[string]interface{}{
							"type":    "integer",
							"minimum": 1,
							"maximum": 4,
						},
						"quarters": map[string]interface{}{
							"type":        "integer",
							"description": "Number of quarters to walk back (default 4).",
						},
					},
					"required": []string{"stocks", "year"},
				},
			},
		},
	}

	log.Println("MCP shim starting...")
	if err := server.Serve(); err != nil {
		log.Fatalf("mcp server failed: %v", err)
	}
}

// Serve starts the read/dispatch/write loop.
func (s *MCPServer) Serve() error {
	for {
		req, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if err.Error() != "empty line" {
				log.Printf("failed to read/parse message: %v", err)
			}
			continue
		}

		// Notifications go through the handler but get no response.
		go func(r Request) {
			resp := s.handleRequest(r)
			if resp == nil {
				return
			}

			if err := s.writeMessage(*resp); err != nil {
				log.Printf("failed to write message: %v", err)
			}
		}(req)
	}
}

// handleRequest routes a single MCP request.
func (s *MCPServer) handleRequest(req Request) *Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, InitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities: map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			ServerInfo: map[string]interface{}{
				"name":    "mops-mcp-shim",
				"version": "1.0.0",
			},
		})

	case "notifications/initialized":
		return nil

	case "tools/list":
		return s.reply(req, ListToolsResult{Tools: s.tools})
	case "tools/call":
		return s.handleToolCall(req)
	case "ping":
		return s.reply(req, map[string]interface{}{})
	case "shutdown":
		go func() {
			time.Sleep(500 * time.Millisecond)
			os.Exit(0)
		}()
		return s.reply(req, nil)
	case "notifications/exit":
		os.Exit(0)
		return nil
	}

	return s.error(req, -32601, fmt.Sprintf("method not found: %s", req.Method), nil)
}

func (s *MCPServer) handleToolCall(req Request) *Response {
	var params ToolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.error(req, -32602, "invalid params", err.Error())
		}
	}

	urlStr, rpcErr := s.toolURL(params.Name, params.Arguments)
	if rpcErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	result, rpcErr := s.callUpstream(urlStr)
	if rpcErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return s.reply(req, result)
}

// toolURL maps a tool call onto an API endpoint.
func (s *MCPServer) toolURL(name string, args map[string]interface{}) (string, *ResponseError) {
	switch name {
	case "financial_statement":
		stockID, err := stringArg(args, "stock_id", true)
		if err != nil {
			return "", err
		}
		year, err := intArg(args, "year", 0, true)
		if err != nil {
			return "", err
		}
		report, _ := stringArg(args, "report", false)
		if report == "" {
			report = "income-statement"
		}
		quarter, err := intArg(args, "quarter", 4, false)
		if err != nil {
			return "", err
		}

		query := url.Values{}
		query.Set("year", strconv.Itoa(year))
		query.Set("quarter", strconv.Itoa(quarter))
		return fmt.Sprintf("%s/financials/%s/%s?%s", s.baseURL, url.PathEscape(stockID), report, query.Encode()), nil

	case "monthly_revenue":
		year, err := intArg(args, "year", 0, true)
		if err != nil {
			return "", err
		}
		month, err := intArg(args, "month", 0, true)
		if err != nil {
			return "", err
		}

		query := url.Values{}
		query.Set("year", strconv.Itoa(year))
		query.Set("month", strconv.Itoa(month))
		if market, _ := stringArg(args, "market", false); market != "" {
			query.Set("market", market)
		}
		if stockID, _ := stringArg(args, "stock_id", false); stockID != "" {
			query.Set("stock_id", stockID)
		}
		return fmt.Sprintf("%s/revenue?%s", s.baseURL, query.Encode()), nil

	case "roe_series":
		stocks, err := stringArg(args, "stocks", true)
		if err != nil {
			return "", err
		}
		year, err := intArg(args, "year", 0, true)
		if err != nil {
			return "", err
		}
		quarter, err := intArg(args, "quarter", 4, false)
		if err != nil {
			return "", err
		}
		quarters, err := intArg(args, "quarters", 4, false)
		if err != nil {
			return "", err
		}

		query := url.Values{}
		query.Set("stocks", stocks)
		query.Set("year", strconv.Itoa(year))
		query.Set("quarter", strconv.Itoa(quarter))
		query.Set("quarters", strconv.Itoa(quarters))
		return fmt.Sprintf("%s/analysis/roe?%s", s.baseURL, query.Encode()), nil
	}

	return "", &ResponseError{Code: -32601, Message: fmt.Sprintf("tool not found: %s", name)}
}

func (s *MCPServer) callUpstream(urlStr string) (*ToolCallResult, *ResponseError) {
	log.Printf("Calling upstream: %s", urlStr)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "failed to build request", Data: err.Error()}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "request failed", Data: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "failed to read response", Data: err.Error()}
	}

	if resp.StatusCode >= 300 {
		return nil, &ResponseError{Code: -32000, Message: fmt.Sprintf("upstream error: %s", resp.Status), Data: string(body)}
	}

	return &ToolCallResult{
		Content: []ContentItem{
			{
				Type: "text",
				Text: string(body),
			},
		},
	}, nil
}

func stringArg(args map[string]interface{}, key string, required bool) (string, *ResponseError) {
	raw, ok := args[key]
	if !ok {
		if required {
			return "", &ResponseError{Code: -32602, Message: key + " is required"}
		}
		return "", nil
	}

	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", &ResponseError{Code: -32602, Message: key + " must be a non-empty string"}
	}
	return strings.TrimSpace(value), nil
}

func intArg(args map[string]interface{}, key string, fallback int, required bool) (int, *ResponseError) {
	raw, ok := args[key]
	if !ok {
		if required {
			return 0, &ResponseError{Code: -32602, Message: key + " is required"}
		}
		return fallback, nil
	}

	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		if i, err := strconv.Atoi(string(v)); err == nil {
			return i, nil
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, nil
		}
	}
	return 0, &ResponseError{Code: -32602, Message: key + " must be an integer"}
}

func (s *MCPServer) reply(req Request, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func (s *MCPServer) error(req Request, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error: &ResponseError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// readMessage reads one newline-delimited JSON message.
func (s *MCPServer) readMessage() (Request, error) {
	line, err := s.in.ReadBytes('\n')
	if err != nil {
		return Request{}, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Request{}, fmt.Errorf("empty line")
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("json parse error: %w", err)
	}

	return req, nil
}

// writeMessage writes one JSON message followed by a newline.
func (s *MCPServer) writeMessage(resp Response) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	if _, err := s.out.Write(payload); err != nil {
		return err
	}
	if _, err := s.out.Write([]byte("\n")); err != nil {
		return err
	}

	return s.out.Flush()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
