package profiles

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/athena"
)

// ClusterCount is how many behavioral groups k-means builds.
const ClusterCount = 5

// UserProfile is one user's assigned personality plus the features that
// drove the assignment.
type UserProfile struct {
	UserID                  string
	Cluster                 int
	Profile                 Definition
	AvgPopularity           float64
	DailyListeningIntensity float64
	ArtistDiversity         float64
	NightPreferenceRatio    float64
	ExplorationRatio        float64
	PeakHour                float64
	GeneratedAt             time.Time
}

// ClusterStat aggregates one personality across all users.
type ClusterStat struct {
	Profile             Definition
	UserCount           int
	Percentage          float64
	AvgPopularityMean   float64
	DailyIntensityMean  float64
	ArtistDiversityMean float64
	NightPreferenceMean float64
}

// Generator turns feature vectors into clustered user profiles.
type Generator struct {
	log *zap.SugaredLogger
	now func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(log *zap.SugaredLogger) *Generator {
	return &Generator{log: log, now: time.Now}
}

// userObservation wraps one user's scaled features for k-means.
type userObservation struct {
	index  int
	coords clusters.Coordinates
}

func (o userObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o userObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Generate clusters the users and assigns each a personality. With fewer
// users than clusters, everyone keeps the default cluster and only the
// score-based personality applies.
func (g *Generator) Generate(features []athena.UserFeatures) ([]UserProfile, []ClusterStat, error) {
	if len(features) == 0 {
		return nil, nil, nil
	}

	assignments := make([]int, len(features))
	for i := range assignments {
		assignments[i] = DefaultCluster
	}

	if len(features) >= ClusterCount {
		clustered, err := g.cluster(features)
		if err != nil {
			return nil, nil, err
		}
		assignments = clustered
	} else {
		g.log.Warnw("too few users for clustering, using default cluster", "users", len(features))
	}

	generatedAt := g.now().UTC()
	userProfiles := make([]UserProfile, len(features))
	for i, f := range features {
		userProfiles[i] = UserProfile{
			UserID:                  f.UserID,
			Cluster:                 assignments[i],
			Profile:                 Definitions[classify(f)],
			AvgPopularity:           round2(f.AvgPopularity),
			DailyListeningIntensity: round2(f.DailyListeningIntensity),
			ArtistDiversity:         round2(float64(f.ArtistDiversity)),
			NightPreferenceRatio:    round2(f.NightPreferenceRatio),
			ExplorationRatio:        round2(f.ExplorationRatio),
			PeakHour:                round2(float64(f.PeakHour)),
			GeneratedAt:             generatedAt,
		}
	}

	return userProfiles, buildStats(userProfiles), nil
}

// cluster runs k-means on robust-scaled features and returns the cluster
// index per user.
func (g *Generator) cluster(features []athena.UserFeatures) ([]int, error) {
	scaled := scaleFeatures(features)

	var obs clusters.Observations
	for i := range scaled {
		obs = append(obs, userObservation{index: i, coords: scaled[i]})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, ClusterCount)
	if err != nil {
		return nil, fmt.Errorf("clustering users: %w", err)
	}

	assignments := make([]int, len(features))
	for clusterIdx, c := range result {
		for _, o := range c.Observations {
			if uo, ok := o.(userObservation); ok {
				assignments[uo.index] = clusterIdx
			}
		}
	}
	return assignments, nil
}

// featureVector orders the clustering dimensions.
func featureVector(f athena.UserFeatures) []float64 {
	return []float64{
		f.AvgPopularity,
		f.DailyListeningIntensity,
		float64(f.ArtistDiversity),
		f.NightPreferenceRatio,
		f.WeekendPreferenceRatio,
		f.ExplorationRatio,
		f.LikeRatio,
		f.PopularityVariance,
		float64(f.PeakHour),
	}
}

// scaleFeatures centers each dimension on its median and divides by the
// interquartile range, which keeps heavy listeners from dominating the
// distance metric.
func scaleFeatures(features []athena.UserFeatures) []clusters.Coordinates {
	vectors := make([][]float64, len(features))
	for i, f := range features {
		vectors[i] = featureVector(f)
	}

	dims := len(vectors[0])
	medians := make([]float64, dims)
	iqrs := make([]float64, dims)
	for d := 0; d < dims; d++ {
		column := make([]float64, len(vectors))
		for i := range vectors {
			column[i] = vectors[i][d]
		}
		medians[d] = percentile(column, 50)
		iqr := percentile(column, 75) - percentile(column, 25)
		if iqr == 0 {
			iqr = 1
		}
		iqrs[d] = iqr
	}

	scaled := make([]clusters.Coordinates, len(vectors))
	for i, v := range vectors {
		coords := make(clusters.Coordinates, dims)
		for d := 0; d < dims; d++ {
			coords[d] = (v[d] - medians[d]) / iqrs[d]
		}
		scaled[i] = coords
	}
	return scaled
}

// percentile interpolates the p-th percentile of values.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func buildStats(userProfiles []UserProfile) []ClusterStat {
	groups := map[string][]UserProfile{}
	for _, up := range userProfiles {
		groups[up.Profile.ID] = append(groups[up.Profile.ID], up)
	}

	total := float64(len(userProfiles))
	var stats []ClusterStat
	for _, id := range priority {
		members, ok := groups[id]
		if !ok {
			continue
		}
		stat := ClusterStat{
			Profile:    Definitions[id],
			UserCount:  len(members),
			Percentage: round2(float64(len(members)) * 100 / total),
		}
		for _, m := range members {
			stat.AvgPopularityMean += m.AvgPopularity
			stat.DailyIntensityMean += m.DailyListeningIntensity
			stat.ArtistDiversityMean += m.ArtistDiversity
			stat.NightPreferenceMean += m.NightPreferenceRatio
		}
		n := float64(len(members))
		stat.AvgPopularityMean = round2(stat.AvgPopularityMean / n)
		stat.DailyIntensityMean = round2(stat.DailyIntensityMean / n)
		stat.ArtistDiversityMean = round2(stat.ArtistDiversityMean / n)
		stat.NightPreferenceMean = round2(stat.NightPreferenceMean / n)
		stats = append(stats, stat)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
