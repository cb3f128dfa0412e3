// Package athena runs the analytics queries behind the dashboard.
package athena

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 60 * time.Second
)

// api is the slice of the Athena client the runner needs.
type api interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// Runner executes queries against one catalog database and polls them to
// completion.
type Runner struct {
	log      *zap.SugaredLogger
	client   api
	database string
	output   string

	pollInterval time.Duration
	timeout      time.Duration
}

// NewRunner creates a Runner. output is the S3 location query results are
// written to.
func NewRunner(log *zap.SugaredLogger, client api, database, output string) *Runner {
	return &Runner{
		log:          log,
		client:       client,
		database:     database,
		output:       output,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
}

// Query runs one statement and returns its data rows, header excluded.
func (r *Runner) Query(ctx context.Context, sql string) ([][]string, error) {
	return r.QueryWithTimeout(ctx, sql, r.timeout)
}

// QueryWithTimeout is Query with a per-call completion deadline, for the
// heavy aggregations that outlive the default.
func (r *Runner) QueryWithTimeout(ctx context.Context, sql string, timeout time.Duration) ([][]string, error) {
	start, err := r.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(sql),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(r.database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(r.output)},
	})
	if err != nil {
		return nil, fmt.Errorf("starting query: %w", err)
	}
	id := aws.ToString(start.QueryExecutionId)

	if err := r.waitForQuery(ctx, id, timeout); err != nil {
		return nil, err
	}
	return r.fetchResults(ctx, id)
}

func (r *Runner) waitForQuery(ctx context.Context, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(id),
		})
		if err != nil {
			return fmt.Errorf("polling query %s: %w", id, err)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case types.QueryExecutionStateSucceeded:
			return nil
		case types.QueryExecutionStateFailed:
			return fmt.Errorf("query %s failed: %s", id, aws.ToString(status.StateChangeReason))
		case types.QueryExecutionStateCancelled:
			return fmt.Errorf("query %s cancelled", id)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("query %s timed out after %s", id, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

// fetchResults pages through the result set. The first row of the first
// page is the column header and is dropped.
func (r *Runner) fetchResults(ctx context.Context, id string) ([][]string, error) {
	var rows [][]string
	var token *string
	first := true

	for {
		out, err := r.client.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(id),
			NextToken:        token,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching results for %s: %w", id, err)
		}

		data := out.ResultSet.Rows
		if first && len(data) > 0 {
			data = data[1:]
			first = false
		}
		for _, row := range data {
			cells := make([]string, len(row.Data))
			for i, d := range row.Data {
				cells[i] = aws.ToString(d.VarCharValue)
			}
			rows = append(rows, cells)
		}

		if out.NextToken == nil {
			return rows, nil
		}
		token = out.NextToken
	}
}

// cell returns row[i], tolerating short rows from null-heavy results.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func cellInt(row []string, i int) int {
	v, _ := strconv.Atoi(cell(row, i))
	return v
}

func cellFloat(row []string, i int) float64 {
	v, _ := strconv.ParseFloat(cell(row, i), 64)
	return v
}
