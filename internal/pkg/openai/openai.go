// Package openai turns a parsed filing into a structured health
// assessment using the OpenAI Responses API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"mops/internal/pkg/financial"
)

const (
	defaultModel     = shared.ResponsesModel("gpt-5.1")
	previewByteLimit = 128 * 1024 // cap what we send to the model
)

var (
	// ErrMissingAPIKey is returned when OPENAI_API_KEY was not configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")
)

// StatementAnalyzer is a thin wrapper around the OpenAI responses client
// that assesses one company's statements.
type StatementAnalyzer struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewStatementAnalyzerFromEnv builds an analyzer using the
// OPENAI_API_KEY env var.
func NewStatementAnalyzerFromEnv() (*StatementAnalyzer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewStatementAnalyzer(apiKey), nil
}

func NewStatementAnalyzer(apiKey string) *StatementAnalyzer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &StatementAnalyzer{client: &client, model: defaultModel}
}

// AnalyzeStatement sends the simplified statement and the ROE series to
// the model and returns its structured assessment.
func (a *StatementAnalyzer) AnalyzeStatement(ctx context.Context, stmt *financial.SimplifiedStatement, roe *financial.CompanyMetric) (*Assessment, error) {
	if a == nil || a.client == nil {
		return nil, errors.New("StatementAnalyzer is not initialized")
	}

	statementJSON, err := json.Marshal(stmt)
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	roeJSON := []byte("null")
	if roe != nil {
		if roeJSON, err = json.Marshal(roe); err != nil {
			return nil, fmt.Errorf("encode roe series: %w", err)
		}
	}

	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(systemPrompt+assessmentSchema, responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(buildPrompt(string(statementJSON), string(roeJSON)), responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call OpenAI: %w", err)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return nil, errors.New("model returned an empty response")
	}

	assessment := &Assessment{}
	if err := json.Unmarshal([]byte(output), assessment); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	assessment.ROETrend = analyzeROETrend(roe)
	return assessment, nil
}

func buildPrompt(statementJSON, roeJSON string) string {
	if len(statementJSON) > previewByteLimit {
		statementJSON = statementJSON[:previewByteLimit] + "\n\n[...truncated...]"
	}

	builder := strings.Builder{}
	builder.WriteString("以下是一家台灣上市公司的財務報表資料，請依照指定的 JSON 結構輸出評估。\n")
	builder.WriteString("財務報表:\n")
	builder.WriteString(statementJSON)
	builder.WriteString("\n\nROE 時間序列:\n")
	builder.WriteString(roeJSON)

	return builder.String()
}
