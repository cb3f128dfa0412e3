// Package bedrock scores tracks against a fixed psychological rubric using
// Claude on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 8000
	temperature      = 0.1

	// DefaultBatchSize is how many tracks go into one model call.
	DefaultBatchSize = 10

	maxRetries = 3
	retryDelay = 2 * time.Second
)

// api is the slice of the Bedrock runtime client the analyzer needs.
type api interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Track identifies one song to score.
type Track struct {
	TrackID    string
	TrackName  string
	ArtistName string
	AlbumName  string
}

// TrackAnalysis is the scored result for one track.
type TrackAnalysis struct {
	TrackID    string             `json:"track_id"`
	TrackName  string             `json:"track_name"`
	ArtistName string             `json:"artist_name"`
	AlbumName  string             `json:"album_name"`
	Dimensions map[string]float64 `json:"dimensions"`
}

// RunMetadata describes one analysis run.
type RunMetadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	SongsProcessed  int       `json:"songs_processed"`
	Database        string    `json:"database"`
	ModelID         string    `json:"model_id"`
}

// AnalysisFile is the on-disk result format of a run.
type AnalysisFile struct {
	Metadata RunMetadata     `json:"metadata"`
	Analyses []TrackAnalysis `json:"analyses"`
}

// Analyzer batches tracks through the model.
type Analyzer struct {
	log       *zap.SugaredLogger
	client    api
	modelID   string
	batchSize int
	delay     time.Duration
}

// New creates an Analyzer for the given model.
func New(log *zap.SugaredLogger, client api, modelID string) *Analyzer {
	return &Analyzer{
		log:       log,
		client:    client,
		modelID:   modelID,
		batchSize: DefaultBatchSize,
		delay:     retryDelay,
	}
}

// AnalyzeAll scores the given tracks in batches. A batch that still fails
// after retries is skipped; everything that succeeded is returned.
func (a *Analyzer) AnalyzeAll(ctx context.Context, tracks []Track) []TrackAnalysis {
	var analyses []TrackAnalysis

	totalBatches := (len(tracks) + a.batchSize - 1) / a.batchSize
	for i := 0; i < len(tracks); i += a.batchSize {
		end := min(i+a.batchSize, len(tracks))
		batchNum := i/a.batchSize + 1
		a.log.Infow("analyzing batch", "batch", batchNum, "total", totalBatches, "tracks", end-i)

		batch, err := a.analyzeBatch(ctx, tracks[i:end])
		if err != nil {
			a.log.Errorw("batch failed, skipping", "batch", batchNum, "error", err)
			continue
		}
		analyses = append(analyses, batch...)

		if end < len(tracks) {
			if err := sleep(ctx, a.delay); err != nil {
				return analyses
			}
		}
	}
	return analyses
}

// analyzeBatch invokes the model with retries, backing off a bit longer on
// each attempt.
func (a *Analyzer) analyzeBatch(ctx context.Context, batch []Track) ([]TrackAnalysis, error) {
	prompt := buildPrompt(batch)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		reply, err := a.invoke(ctx, prompt)
		if err == nil {
			analyses, perr := parseResponse(reply)
			if perr == nil {
				return analyses, nil
			}
			err = perr
		}

		lastErr = err
		a.log.Warnw("analysis attempt failed", "attempt", attempt, "error", err)
		if attempt < maxRetries {
			if serr := sleep(ctx, a.delay*time.Duration(attempt)); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Analyzer) invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages:         []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("invoking model: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("empty model response")
	}
	return resp.Content[0].Text, nil
}

// buildPrompt renders the rubric and the batch into the scoring prompt.
// The response contract is strict JSON so parsing stays simple.
func buildPrompt(batch []Track) string {
	var b strings.Builder

	b.WriteString("You are an expert musicologist with deep knowledge of music psychology and emotional analysis. Analyze the following songs and assign precise percentages (0-100) to each dimension.\n\n")

	b.WriteString("SONGS TO ANALYZE:\n")
	for i, t := range batch {
		fmt.Fprintf(&b, "%d. '%s' by %s (Album: %s) [track_id: %s]\n", i+1, t.TrackName, t.ArtistName, t.AlbumName, t.TrackID)
	}

	fmt.Fprintf(&b, "\nFor each song, score these %d dimensions:\n", len(DimensionNames()))
	for _, g := range Groups {
		fmt.Fprintf(&b, "\n**%s:**\n", g.Title)
		for _, d := range g.Dimensions {
			fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		}
	}

	b.WriteString(`
RESPONSE FORMAT (strict JSON):
{
  "analyses": [
    {
      "track_name": "exact_track_name",
      "artist_name": "exact_artist_name",
      "album_name": "exact_album_name",
      "track_id": "exact_track_id",
      "dimensions": {
`)
	names := DimensionNames()
	for i, name := range names {
		comma := ","
		if i == len(names)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "        %q: 50%s\n", name, comma)
	}
	b.WriteString(`      }
    }
  ]
}

Respond ONLY with valid JSON, no additional text.
`)
	return b.String()
}

// parseResponse extracts the outermost JSON object from the model reply.
// Claude occasionally wraps the JSON in prose or a code fence.
func parseResponse(text string) ([]TrackAnalysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New("no JSON object in model reply")
	}

	var parsed AnalysisFile
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("parsing model reply: %w", err)
	}
	if parsed.Analyses == nil {
		return nil, errors.New("model reply missing analyses")
	}
	return parsed.Analyses, nil
}

// SaveResults writes a run's analyses to <dir>/dimension_analysis_<ts>.json.
func SaveResults(dir string, analyses []TrackAnalysis, meta RunMetadata) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating analysis directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("dimension_analysis_%s.json", meta.GeneratedAt.Format("20060102_150405")))
	data, err := json.MarshalIndent(AnalysisFile{Metadata: meta, Analyses: analyses}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing results: %w", err)
	}
	return path, nil
}

// LoadResults reads a results file written by SaveResults.
func LoadResults(path string) (*AnalysisFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analysis file: %w", err)
	}
	var file AnalysisFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing analysis file: %w", err)
	}
	return &file, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
