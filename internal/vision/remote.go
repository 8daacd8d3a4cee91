package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteAnalyzer delegates analysis to the POST /analyze endpoint of another instance.
type RemoteAnalyzer struct {
	baseURL string
	client  *http.Client
}

// NewRemoteAnalyzer targets baseURL, e.g. https://rooms.example.com.
func NewRemoteAnalyzer(baseURL string, timeout time.Duration) *RemoteAnalyzer {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &RemoteAnalyzer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Analyze posts the request and decodes {analysis} or {error, phase}.
func (r *RemoteAnalyzer) Analyze(ctx context.Context, imageURL, roomType, designStyle string) (RoomAnalysis, error) {
	body, err := json.Marshal(AnalyzeRequest{ImageURL: imageURL, RoomType: roomType, DesignType: designStyle})
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: fmt.Errorf("read response: %w", err)}
	}

	var decoded struct {
		Analysis json.RawMessage `json:"analysis"`
		Error    string          `json:"error"`
		Phase    string          `json:"phase"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: fmt.Errorf("status %d: decode response: %w", resp.StatusCode, err)}
	}

	if resp.StatusCode >= 300 || len(decoded.Analysis) == 0 || string(decoded.Analysis) == "null" {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		if decoded.Phase == "parse" {
			return RoomAnalysis{}, &AnalysisParseError{Raw: string(payload), Err: errors.New(msg)}
		}
		phase := decoded.Phase
		if phase == "" || phase == "unknown" {
			phase = "request"
		}
		return RoomAnalysis{}, &AnalysisRequestError{Phase: phase, Err: errors.New(msg)}
	}

	analysis, err := decodeAnalysis(string(decoded.Analysis))
	if err != nil {
		return RoomAnalysis{}, &AnalysisParseError{Raw: string(decoded.Analysis), Err: err}
	}
	return analysis, nil
}
