package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/bytedance/sonic"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// maxLine bounds one NDJSON chunk of the stream.
const maxLine = 4 << 20

// VertexClient queries a Vertex AI reasoning engine through :streamQuery.
type VertexClient struct {
	http    *http.Client
	tokens  auth.TokenProvider
	baseURL string // https://<location>-aiplatform.googleapis.com
	engine  string // projects/<p>/locations/<l>/reasoningEngines/<id>
}

type Option func(*VertexClient)

func WithHTTPClient(c *http.Client) Option { return func(v *VertexClient) { v.http = c } }
func WithBaseURL(u string) Option {
	return func(v *VertexClient) { v.baseURL = strings.TrimRight(u, "/") }
}

func NewVertexClient(engine, location string, tokens auth.TokenProvider, opts ...Option) *VertexClient {
	v := &VertexClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		tokens:  tokens,
		baseURL: fmt.Sprintf("https://%s-aiplatform.googleapis.com", location),
		engine:  strings.Trim(engine, "/"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DefaultTokenProvider resolves Google application default credentials.
func DefaultTokenProvider() (auth.TokenProvider, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect default credentials: %w", err)
	}
	return creds, nil
}

type streamInput struct {
	Message   string  `json:"message"`
	UserID    string  `json:"user_id"`
	SessionID *string `json:"session_id"`
}

type streamRequest struct {
	ClassMethod string      `json:"class_method"`
	Input       streamInput `json:"input"`
}

type streamChunk struct {
	Content *struct {
		Role  string `json:"role"`
		Parts []struct {
			Text *string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

// Ask sends text to the agent and returns its final model text. An empty
// string means the stream carried no model text.
func (v *VertexClient) Ask(ctx context.Context, text, userID, sessionID string) (string, error) {
	in := streamInput{Message: text, UserID: userID}
	if sessionID != "" {
		in.SessionID = &sessionID
	}
	body, err := sonic.ConfigFastest.Marshal(streamRequest{ClassMethod: "stream_query", Input: in})
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	tok, err := v.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("agent token: %w", err)
	}

	url := fmt.Sprintf("%s/v1/%s:streamQuery", v.baseURL, v.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("stream query: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return lastModelText(ctx, resp.Body)
}

// lastModelText scans the NDJSON stream; the last text part with role "model" wins.
// Lines that fail to decode are skipped.
func lastModelText(ctx context.Context, r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var final string
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk streamChunk
		if err := sonic.ConfigFastest.Unmarshal(line, &chunk); err != nil {
			logging.FromCtx(ctx).Debug("skipping stream line", "err", err)
			continue
		}
		if chunk.Content == nil || chunk.Content.Role != "model" {
			continue
		}
		for _, p := range chunk.Content.Parts {
			if p.Text != nil {
				final = *p.Text
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return final, nil
}

var _ usecase.AgentBackend = (*VertexClient)(nil)
