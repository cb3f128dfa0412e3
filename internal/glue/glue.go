// Package glue manages the data catalog the Athena queries run against.
package glue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/bedrock"
	"github.com/ragp/spotifire/internal/etl"
)

const (
	parquetSerde      = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
	parquetInputFmt   = "org.apache.hadoop.mapred.TextInputFormat"
	parquetOutputFmt  = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
	externalTableType = "EXTERNAL_TABLE"
)

// api is the slice of the Glue client the manager needs.
type api interface {
	CreateDatabase(ctx context.Context, params *glue.CreateDatabaseInput, optFns ...func(*glue.Options)) (*glue.CreateDatabaseOutput, error)
	GetDatabase(ctx context.Context, params *glue.GetDatabaseInput, optFns ...func(*glue.Options)) (*glue.GetDatabaseOutput, error)
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *glue.UpdateTableInput, optFns ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// Manager creates and verifies the catalog database and its tables.
type Manager struct {
	log      *zap.SugaredLogger
	client   api
	database string
	bucket   string
	prefix   string
}

// New creates a Manager. prefix is the S3 prefix the processed datasets
// live under.
func New(log *zap.SugaredLogger, client api, database, bucket, prefix string) *Manager {
	return &Manager{log: log, client: client, database: database, bucket: bucket, prefix: prefix}
}

type column struct {
	name, typ string
}

// EnsureAll creates the database and every dataset table, updating tables
// that already exist so schema changes roll forward.
func (m *Manager) EnsureAll(ctx context.Context) error {
	if err := m.EnsureDatabase(ctx); err != nil {
		return err
	}
	for _, dataset := range []string{
		etl.DatasetUserTracks,
		etl.DatasetLikes,
		etl.DatasetTopTracks,
		etl.DatasetFollowedArtists,
		etl.DatasetDimensions,
	} {
		if err := m.EnsureTable(ctx, dataset); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDatabase creates the catalog database if it does not exist yet.
func (m *Manager) EnsureDatabase(ctx context.Context) error {
	_, err := m.client.CreateDatabase(ctx, &glue.CreateDatabaseInput{
		DatabaseInput: &types.DatabaseInput{
			Name:        aws.String(m.database),
			Description: aws.String("Spotify listening analytics datasets"),
		},
	})
	if err != nil {
		var exists *types.AlreadyExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("creating database %s: %w", m.database, err)
		}
		m.log.Infow("database exists", "database", m.database)
		return nil
	}
	m.log.Infow("created database", "database", m.database)
	return nil
}

// EnsureTable creates or updates one dataset table.
func (m *Manager) EnsureTable(ctx context.Context, dataset string) error {
	cols, ok := schemas()[dataset]
	if !ok {
		return fmt.Errorf("unknown dataset %q", dataset)
	}
	input := m.tableInput(dataset, cols)

	_, err := m.client.CreateTable(ctx, &glue.CreateTableInput{
		DatabaseName: aws.String(m.database),
		TableInput:   input,
	})
	if err != nil {
		var exists *types.AlreadyExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("creating table %s: %w", dataset, err)
		}
		if _, err := m.client.UpdateTable(ctx, &glue.UpdateTableInput{
			DatabaseName: aws.String(m.database),
			TableInput:   input,
		}); err != nil {
			return fmt.Errorf("updating table %s: %w", dataset, err)
		}
		m.log.Infow("updated table", "table", dataset)
		return nil
	}
	m.log.Infow("created table", "table", dataset)
	return nil
}

// Verify reads the database and every table back from the catalog.
func (m *Manager) Verify(ctx context.Context) error {
	if _, err := m.client.GetDatabase(ctx, &glue.GetDatabaseInput{Name: aws.String(m.database)}); err != nil {
		return fmt.Errorf("verifying database %s: %w", m.database, err)
	}
	for dataset := range schemas() {
		out, err := m.client.GetTable(ctx, &glue.GetTableInput{
			DatabaseName: aws.String(m.database),
			Name:         aws.String(dataset),
		})
		if err != nil {
			return fmt.Errorf("verifying table %s: %w", dataset, err)
		}
		m.log.Infow("verified table",
			"table", dataset,
			"columns", len(out.Table.StorageDescriptor.Columns),
			"location", aws.ToString(out.Table.StorageDescriptor.Location),
		)
	}
	return nil
}

func (m *Manager) location(dataset string) string {
	return fmt.Sprintf("s3://%s/%s/%s/", m.bucket, m.prefix, dataset)
}

func (m *Manager) tableInput(dataset string, cols []column) *types.TableInput {
	columns := make([]types.Column, len(cols))
	for i, c := range cols {
		columns[i] = types.Column{Name: aws.String(c.name), Type: aws.String(c.typ)}
	}
	return &types.TableInput{
		Name:      aws.String(dataset),
		TableType: aws.String(externalTableType),
		Parameters: map[string]string{
			"EXTERNAL":            "TRUE",
			"parquet.compression": "SNAPPY",
			"classification":      "parquet",
		},
		StorageDescriptor: &types.StorageDescriptor{
			Columns:      columns,
			Location:     aws.String(m.location(dataset)),
			InputFormat:  aws.String(parquetInputFmt),
			OutputFormat: aws.String(parquetOutputFmt),
			SerdeInfo: &types.SerDeInfo{
				SerializationLibrary: aws.String(parquetSerde),
				Parameters:           map[string]string{"serialization.format": "1"},
			},
		},
	}
}

// schemas returns the catalog columns per dataset, mirroring the parquet
// rows the converter writes.
func schemas() map[string][]column {
	dimensions := []column{
		{"track_id", "string"},
		{"track_name", "string"},
		{"artist_name", "string"},
		{"album_name", "string"},
	}
	for _, name := range bedrock.DimensionNames() {
		dimensions = append(dimensions, column{name, "double"})
	}
	dimensions = append(dimensions,
		column{"overall_energy", "double"},
		column{"dominant_tempo", "string"},
		column{"positive_valence", "double"},
		column{"negative_valence", "double"},
		column{"fitness_score", "double"},
		column{"relaxation_score", "double"},
		column{"social_score", "double"},
		column{"creative_score", "double"},
		column{"mainstream_factor", "double"},
		column{"temporal_relevance", "double"},
		column{"analysis_timestamp", "timestamp"},
		column{"analysis_model", "string"},
		column{"analysis_version", "string"},
		column{"confidence_score", "double"},
	)

	return map[string][]column{
		etl.DatasetUserTracks: {
			{"user_id", "string"},
			{"played_at_utc", "timestamp"},
			{"played_at_mexico", "timestamp"},
			{"track_id", "string"},
			{"track_name", "string"},
			{"artist_id", "string"},
			{"artist_name", "string"},
			{"album_id", "string"},
			{"album_name", "string"},
			{"duration_ms", "bigint"},
			{"duration_minutes", "double"},
			{"popularity", "int"},
			{"explicit", "boolean"},
			{"play_hour", "int"},
			{"play_day_of_week", "int"},
			{"play_month", "int"},
			{"play_year", "int"},
			{"season", "string"},
			{"processed_at", "timestamp"},
		},
		etl.DatasetLikes: {
			{"user_id", "string"},
			{"added_at_utc", "timestamp"},
			{"added_at_mexico", "timestamp"},
			{"track_id", "string"},
			{"track_name", "string"},
			{"artists_id", "string"},
			{"album_id", "string"},
			{"track_popularity", "int"},
			{"explicit", "boolean"},
			{"duration_ms", "bigint"},
			{"processed_at", "timestamp"},
		},
		etl.DatasetTopTracks: {
			{"user_id", "string"},
			{"added_at_utc", "timestamp"},
			{"added_at_mexico", "timestamp"},
			{"track_id", "string"},
			{"track_name", "string"},
			{"artists_id", "string"},
			{"album_id", "string"},
			{"track_popularity", "int"},
			{"explicit", "boolean"},
			{"duration_ms", "bigint"},
			{"ith_preference", "int"},
			{"processed_at", "timestamp"},
		},
		etl.DatasetFollowedArtists: {
			{"user_id", "string"},
			{"artist_id", "string"},
			{"processed_at", "timestamp"},
		},
		etl.DatasetDimensions: dimensions,
	}
}
