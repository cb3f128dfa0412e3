package etl

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ragp/spotifire/internal/bedrock"
)

const (
	analysisModel   = "claude-3-5-sonnet"
	analysisVersion = "1.0"
	confidenceScore = 85.0
)

// ProcessDimensions builds the track_dimensions dataset from one or more
// analysis result files. A track missing any rubric dimension or any of its
// identifying names is skipped; scores are clamped to 0-100.
func (p *Processor) ProcessDimensions(files ...*bedrock.AnalysisFile) (*Result, error) {
	timestamp := p.now().UTC()
	var rows []DimensionRow
	skipped := 0

	for _, file := range files {
		for _, analysis := range file.Analyses {
			row, ok := dimensionRow(analysis)
			if !ok {
				skipped++
				continue
			}
			row.AnalysisTimestamp = timestamp
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ArtistName != rows[j].ArtistName {
			return rows[i].ArtistName < rows[j].ArtistName
		}
		return rows[i].TrackName < rows[j].TrackName
	})

	path := filepath.Join(p.dataDir, "processed", DatasetDimensions, "track_dimensions.parquet")
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}

	p.log.Infow("built track_dimensions", "rows", len(rows), "skipped", skipped)
	return &Result{Dataset: DatasetDimensions, Path: path, Rows: len(rows), Skipped: skipped}, nil
}

func dimensionRow(a bedrock.TrackAnalysis) (DimensionRow, bool) {
	row := DimensionRow{
		TrackID:         a.TrackID,
		TrackName:       strings.TrimSpace(a.TrackName),
		ArtistName:      strings.TrimSpace(a.ArtistName),
		AlbumName:       strings.TrimSpace(a.AlbumName),
		AnalysisModel:   analysisModel,
		AnalysisVersion: analysisVersion,
		ConfidenceScore: confidenceScore,
	}
	if row.TrackID == "" || row.TrackName == "" || row.ArtistName == "" || row.AlbumName == "" {
		return DimensionRow{}, false
	}

	fields := row.dimensionFields()
	for _, name := range bedrock.DimensionNames() {
		score, ok := a.Dimensions[name]
		if !ok {
			return DimensionRow{}, false
		}
		*fields[name] = clamp(score)
	}

	row.derive()
	return row, true
}

// dimensionFields maps rubric names onto the row's score fields.
func (r *DimensionRow) dimensionFields() map[string]*float64 {
	return map[string]*float64{
		"high_energy":                 &r.HighEnergy,
		"medium_energy":               &r.MediumEnergy,
		"low_energy":                  &r.LowEnergy,
		"fast_tempo":                  &r.FastTempo,
		"mid_tempo":                   &r.MidTempo,
		"slow_tempo":                  &r.SlowTempo,
		"euphoria":                    &r.Euphoria,
		"melancholy":                  &r.Melancholy,
		"serenity":                    &r.Serenity,
		"dramatic_intensity":          &r.DramaticIntensity,
		"mystery":                     &r.Mystery,
		"warmth":                      &r.Warmth,
		"workout":                     &r.Workout,
		"focus_work":                  &r.FocusWork,
		"social_party":                &r.SocialParty,
		"introspection":               &r.Introspection,
		"relaxation":                  &r.Relaxation,
		"travel":                      &r.Travel,
		"retro_nostalgia":             &r.RetroNostalgia,
		"experimental":                &r.Experimental,
		"underground":                 &r.Underground,
		"universality":                &r.Universality,
		"regionality":                 &r.Regionality,
		"timelessness":                &r.Timelessness,
		"creative_stimulation":        &r.CreativeStimulation,
		"emotional_processing":        &r.EmotionalProcessing,
		"mental_escape":               &r.MentalEscape,
		"motivation_drive":            &r.MotivationDrive,
		"philosophical_contemplation": &r.PhilosophicalContemplation,
		"social_connection":           &r.SocialConnection,
	}
}

// derive fills the aggregate metrics from the raw scores.
func (r *DimensionRow) derive() {
	r.OverallEnergy = round2((r.HighEnergy + r.MediumEnergy + r.LowEnergy) / 3)
	r.DominantTempo = dominantTempo(r.FastTempo, r.MidTempo, r.SlowTempo)
	r.PositiveValence = round2((r.Euphoria + r.Warmth + r.Serenity) / 3)
	r.NegativeValence = round2((r.Melancholy + r.DramaticIntensity) / 2)
	r.FitnessScore = round2((r.Workout + r.MotivationDrive + r.HighEnergy) / 3)
	r.RelaxationScore = round2((r.Relaxation + r.Serenity + r.LowEnergy) / 3)
	r.SocialScore = round2((r.SocialParty + r.SocialConnection + r.Universality) / 3)
	r.CreativeScore = round2((r.CreativeStimulation + r.Experimental) / 2)
	r.MainstreamFactor = round2((r.Universality - r.Underground) / 2)
	r.TemporalRelevance = round2((r.Timelessness + r.RetroNostalgia) / 2)
}

func dominantTempo(fast, mid, slow float64) string {
	switch {
	case fast >= mid && fast >= slow:
		return "fast_tempo"
	case mid >= slow:
		return "mid_tempo"
	default:
		return "slow_tempo"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
