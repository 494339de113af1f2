package nsfw

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Threshold above which content is flagged as NSFW.
const Threshold = 50

const prompt = "Analyze this image for NSFW content. Rate from 0 to 100. " +
	"0 means completely safe, 100 means explicit adult content. " +
	"Respond with a number only."

// Result is a classification outcome. Score is in [0,100].
type Result struct {
	Score   int
	Flagged bool
}

// Classifier scores content against an OpenAI-style vision chat
// endpoint. Any failure degrades to the fail-safe Result (score 0,
// not flagged): availability is prioritized over safety on this path.
type Classifier interface {
	Classify(ctx context.Context, data []byte, mimeType string) Result
}

// VisionClassifier calls an external chat-completions endpoint with the
// image inlined as a data URL.
type VisionClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewVisionClassifier creates a classifier for the given endpoint. The
// timeout bounds the whole call; a timeout is treated like any other
// classifier failure.
func NewVisionClassifier(endpoint, apiKey string, timeout time.Duration) *VisionClassifier {
	return &VisionClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify scores the given bytes. It never propagates an error: the
// fail-safe result is returned and the cause logged.
func (c *VisionClassifier) Classify(ctx context.Context, data []byte, mimeType string) Result {
	score, err := c.score(ctx, data, mimeType)
	if err != nil {
		log.Warn().Err(err).Msg("NSFW classification failed, defaulting to safe")
		return Result{Score: 0, Flagged: false}
	}
	return Result{Score: score, Flagged: score > Threshold}
}

func (c *VisionClassifier) score(ctx context.Context, data []byte, mimeType string) (int, error) {
	if c.endpoint == "" {
		return 0, fmt.Errorf("classifier endpoint not configured")
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	reqBody := chatRequest{
		Model: "vision",
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: prompt},
			},
		}},
		MaxTokens: 10,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return parseScore(parsed), nil
}

// parseScore extracts the integer reply. A missing or non-numeric
// reply counts as 0; the result is clamped into [0,100].
func parseScore(resp chatResponse) int {
	if len(resp.Choices) == 0 {
		return 0
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
