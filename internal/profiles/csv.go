package profiles

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Output filenames, local and in S3 under the ml prefix.
const (
	ProfilesFile = "user_music_profiles.csv"
	StatsFile    = "user_music_profiles_cluster_stats.csv"
)

var profilesHeader = []string{
	"user_id", "cluster", "profile_name", "profile_emoji",
	"profile_description", "profile_characteristics", "profile_criteria",
	"avg_popularity", "daily_listening_intensity", "artist_diversity",
	"night_preference_ratio", "exploration_ratio", "peak_hour", "generated_at",
}

var statsHeader = []string{
	"profile_name", "profile_emoji", "user_count", "percentage",
	"avg_popularity_mean", "daily_intensity_mean",
	"artist_diversity_mean", "night_preference_mean",
}

// WriteCSVs writes the per-user profiles and the cluster stats into dir,
// returning both paths.
func WriteCSVs(dir string, userProfiles []UserProfile, stats []ClusterStat) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating profiles directory: %w", err)
	}

	profilesPath := filepath.Join(dir, ProfilesFile)
	rows := make([][]string, 0, len(userProfiles))
	for _, up := range userProfiles {
		rows = append(rows, []string{
			up.UserID,
			strconv.Itoa(up.Cluster),
			up.Profile.Name,
			up.Profile.Emoji,
			up.Profile.Description,
			joinList(up.Profile.Characteristics),
			up.Profile.Criteria,
			formatFloat(up.AvgPopularity),
			formatFloat(up.DailyListeningIntensity),
			formatFloat(up.ArtistDiversity),
			formatFloat(up.NightPreferenceRatio),
			formatFloat(up.ExplorationRatio),
			formatFloat(up.PeakHour),
			up.GeneratedAt.Format(time.RFC3339),
		})
	}
	if err := writeCSV(profilesPath, profilesHeader, rows); err != nil {
		return "", "", err
	}

	statsPath := filepath.Join(dir, StatsFile)
	statRows := make([][]string, 0, len(stats))
	for _, st := range stats {
		statRows = append(statRows, []string{
			st.Profile.Name,
			st.Profile.Emoji,
			strconv.Itoa(st.UserCount),
			formatFloat(st.Percentage),
			formatFloat(st.AvgPopularityMean),
			formatFloat(st.DailyIntensityMean),
			formatFloat(st.ArtistDiversityMean),
			formatFloat(st.NightPreferenceMean),
		})
	}
	if err := writeCSV(statsPath, statsHeader, statRows); err != nil {
		return "", "", err
	}

	return profilesPath, statsPath, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(all) < 2 {
		return nil, nil
	}

	header := all[0]
	records := make([]map[string]string, 0, len(all)-1)
	for _, row := range all[1:] {
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
