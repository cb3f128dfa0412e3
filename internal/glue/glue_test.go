package glue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/etl"
)

type fakeGlue struct {
	databases map[string]bool
	tables    map[string]*types.TableInput
	updates   int
	createErr error
}

func newFakeGlue() *fakeGlue {
	return &fakeGlue{databases: map[string]bool{}, tables: map[string]*types.TableInput{}}
}

func (f *fakeGlue) CreateDatabase(_ context.Context, params *glue.CreateDatabaseInput, _ ...func(*glue.Options)) (*glue.CreateDatabaseOutput, error) {
	name := aws.ToString(params.DatabaseInput.Name)
	if f.databases[name] {
		return nil, &types.AlreadyExistsException{}
	}
	f.databases[name] = true
	return &glue.CreateDatabaseOutput{}, nil
}

func (f *fakeGlue) GetDatabase(_ context.Context, params *glue.GetDatabaseInput, _ ...func(*glue.Options)) (*glue.GetDatabaseOutput, error) {
	if !f.databases[aws.ToString(params.Name)] {
		return nil, &types.EntityNotFoundException{}
	}
	return &glue.GetDatabaseOutput{}, nil
}

func (f *fakeGlue) CreateTable(_ context.Context, params *glue.CreateTableInput, _ ...func(*glue.Options)) (*glue.CreateTableOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := aws.ToString(params.TableInput.Name)
	if _, ok := f.tables[name]; ok {
		return nil, &types.AlreadyExistsException{}
	}
	f.tables[name] = params.TableInput
	return &glue.CreateTableOutput{}, nil
}

func (f *fakeGlue) UpdateTable(_ context.Context, params *glue.UpdateTableInput, _ ...func(*glue.Options)) (*glue.UpdateTableOutput, error) {
	f.updates++
	f.tables[aws.ToString(params.TableInput.Name)] = params.TableInput
	return &glue.UpdateTableOutput{}, nil
}

func (f *fakeGlue) GetTable(_ context.Context, params *glue.GetTableInput, _ ...func(*glue.Options)) (*glue.GetTableOutput, error) {
	input, ok := f.tables[aws.ToString(params.Name)]
	if !ok {
		return nil, &types.EntityNotFoundException{}
	}
	return &glue.GetTableOutput{Table: &types.Table{
		Name:              input.Name,
		StorageDescriptor: input.StorageDescriptor,
	}}, nil
}

func newTestManager(fake *fakeGlue) *Manager {
	return New(zap.NewNop().Sugar(), fake, "spotify_analytics", "bucket", "spotifire/processed/individual")
}

func TestEnsureAllCreatesEverything(t *testing.T) {
	fake := newFakeGlue()
	m := newTestManager(fake)

	if err := m.EnsureAll(context.Background()); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}
	if !fake.databases["spotify_analytics"] {
		t.Error("database not created")
	}
	if len(fake.tables) != 5 {
		t.Errorf("tables = %d, want 5", len(fake.tables))
	}
	if err := m.Verify(context.Background()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestEnsureAllIsIdempotent(t *testing.T) {
	fake := newFakeGlue()
	m := newTestManager(fake)

	if err := m.EnsureAll(context.Background()); err != nil {
		t.Fatalf("first EnsureAll() error = %v", err)
	}
	if err := m.EnsureAll(context.Background()); err != nil {
		t.Fatalf("second EnsureAll() error = %v", err)
	}
	if fake.updates != 5 {
		t.Errorf("updates = %d, want 5 (one per existing table)", fake.updates)
	}
}

func TestEnsureTablePropagatesErrors(t *testing.T) {
	fake := newFakeGlue()
	fake.createErr = errors.New("access denied")
	m := newTestManager(fake)

	if err := m.EnsureTable(context.Background(), etl.DatasetLikes); err == nil {
		t.Error("EnsureTable() expected error")
	}
}

func TestTableShape(t *testing.T) {
	fake := newFakeGlue()
	m := newTestManager(fake)

	if err := m.EnsureTable(context.Background(), etl.DatasetUserTracks); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}

	table := fake.tables[etl.DatasetUserTracks]
	if aws.ToString(table.TableType) != "EXTERNAL_TABLE" {
		t.Errorf("TableType = %q", aws.ToString(table.TableType))
	}
	if table.Parameters["parquet.compression"] != "SNAPPY" || table.Parameters["classification"] != "parquet" {
		t.Errorf("Parameters = %v", table.Parameters)
	}

	sd := table.StorageDescriptor
	if want := "s3://bucket/spotifire/processed/individual/user_tracks/"; aws.ToString(sd.Location) != want {
		t.Errorf("Location = %q, want %q", aws.ToString(sd.Location), want)
	}
	if aws.ToString(sd.SerdeInfo.SerializationLibrary) != parquetSerde {
		t.Errorf("serde = %q", aws.ToString(sd.SerdeInfo.SerializationLibrary))
	}
	if len(sd.Columns) != 19 {
		t.Errorf("user_tracks columns = %d, want 19", len(sd.Columns))
	}

	colTypes := map[string]string{}
	for _, c := range sd.Columns {
		colTypes[aws.ToString(c.Name)] = aws.ToString(c.Type)
	}
	if colTypes["duration_ms"] != "bigint" || colTypes["duration_minutes"] != "double" || colTypes["explicit"] != "boolean" {
		t.Errorf("column types = %v", colTypes)
	}
}

func TestDimensionTableCoversRubric(t *testing.T) {
	cols := schemas()[etl.DatasetDimensions]
	// 4 identity + 30 rubric + 10 derived + 4 metadata
	if len(cols) != 48 {
		t.Errorf("track_dimensions columns = %d, want 48", len(cols))
	}

	byName := map[string]string{}
	for _, c := range cols {
		byName[c.name] = c.typ
	}
	if byName["high_energy"] != "double" || byName["dominant_tempo"] != "string" {
		t.Errorf("column types = %v", byName)
	}
	if byName["analysis_timestamp"] != "timestamp" {
		t.Errorf("analysis_timestamp = %q", byName["analysis_timestamp"])
	}
}
