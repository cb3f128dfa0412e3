package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	replies []string
	errs    []error
	calls   int
	bodies  [][]byte
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	i := f.calls
	f.calls++
	f.bodies = append(f.bodies, params.Body)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := f.replies[min(i, len(f.replies)-1)]
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": reply}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func newTestAnalyzer(client api) *Analyzer {
	a := New(zap.NewNop().Sugar(), client, "test-model")
	a.delay = time.Millisecond
	return a
}

func replyFor(ids ...string) string {
	var analyses []TrackAnalysis
	for _, id := range ids {
		analyses = append(analyses, TrackAnalysis{
			TrackID:    id,
			TrackName:  "Song " + id,
			Dimensions: map[string]float64{"high_energy": 80},
		})
	}
	data, _ := json.Marshal(AnalysisFile{Analyses: analyses})
	return string(data)
}

func TestBuildPromptCoversRubric(t *testing.T) {
	prompt := buildPrompt([]Track{
		{TrackID: "t1", TrackName: "Song A", ArtistName: "Artist A", AlbumName: "Album A"},
	})

	for _, name := range DimensionNames() {
		if !strings.Contains(prompt, name) {
			t.Errorf("prompt missing dimension %q", name)
		}
	}
	if !strings.Contains(prompt, "'Song A' by Artist A (Album: Album A) [track_id: t1]") {
		t.Error("prompt missing song listing")
	}
	if !strings.Contains(prompt, `"analyses"`) {
		t.Error("prompt missing response contract")
	}
}

func TestParseResponse(t *testing.T) {
	valid := replyFor("t1")
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"bare json", valid, 1, false},
		{"code fence", "```json\n" + valid + "\n```", 1, false},
		{"surrounding prose", "Here is the analysis:\n" + valid + "\nLet me know.", 1, false},
		{"no json", "sorry, I cannot do that", 0, true},
		{"wrong shape", `{"results": []}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("parseResponse() = %d analyses, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAnalyzeAllBatches(t *testing.T) {
	tracks := make([]Track, 25)
	for i := range tracks {
		tracks[i] = Track{TrackID: fmt.Sprintf("t%d", i)}
	}
	fake := &fakeRuntime{replies: []string{
		replyFor("t0", "t1"),
		replyFor("t10"),
		replyFor("t20"),
	}}
	a := newTestAnalyzer(fake)

	got := a.AnalyzeAll(context.Background(), tracks)

	if fake.calls != 3 {
		t.Errorf("InvokeModel calls = %d, want 3", fake.calls)
	}
	if len(got) != 4 {
		t.Errorf("analyses = %d, want 4", len(got))
	}

	var req claudeRequest
	if err := json.Unmarshal(fake.bodies[0], &req); err != nil {
		t.Fatalf("Unmarshal request error = %v", err)
	}
	if req.AnthropicVersion != anthropicVersion {
		t.Errorf("anthropic_version = %q", req.AnthropicVersion)
	}
	if req.MaxTokens != maxTokens || req.Temperature != temperature {
		t.Errorf("max_tokens = %d, temperature = %v", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestAnalyzeAllRetriesThenSkips(t *testing.T) {
	boom := errors.New("throttled")
	fake := &fakeRuntime{
		errs:    []error{boom, boom, boom},
		replies: []string{replyFor("t10")},
	}
	a := newTestAnalyzer(fake)

	tracks := make([]Track, 15)
	for i := range tracks {
		tracks[i] = Track{TrackID: fmt.Sprintf("t%d", i)}
	}
	got := a.AnalyzeAll(context.Background(), tracks)

	// first batch burns all three attempts, second batch succeeds
	if fake.calls != 4 {
		t.Errorf("InvokeModel calls = %d, want 4", fake.calls)
	}
	if len(got) != 1 || got[0].TrackID != "t10" {
		t.Errorf("analyses = %+v, want only t10", got)
	}
}

func TestSaveAndLoadResults(t *testing.T) {
	dir := t.TempDir()
	meta := RunMetadata{
		GeneratedAt:    time.Date(2025, 6, 21, 1, 2, 3, 0, time.UTC),
		SongsProcessed: 1,
		Database:       "spotify_analytics",
		ModelID:        "test-model",
	}
	analyses := []TrackAnalysis{{TrackID: "t1", Dimensions: map[string]float64{"warmth": 90}}}

	path, err := SaveResults(dir, analyses, meta)
	if err != nil {
		t.Fatalf("SaveResults() error = %v", err)
	}
	if !strings.HasSuffix(path, "dimension_analysis_20250621_010203.json") {
		t.Errorf("path = %q", path)
	}

	file, err := LoadResults(path)
	if err != nil {
		t.Fatalf("LoadResults() error = %v", err)
	}
	if file.Metadata.ModelID != "test-model" {
		t.Errorf("ModelID = %q", file.Metadata.ModelID)
	}
	if len(file.Analyses) != 1 || file.Analyses[0].Dimensions["warmth"] != 90 {
		t.Errorf("Analyses = %+v", file.Analyses)
	}
}
