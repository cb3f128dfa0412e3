// Package storage syncs collected snapshots and generated artifacts with S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// api is the slice of the S3 client the uploader needs.
// *s3.Client satisfies it; tests substitute a fake.
type api interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// UserSync counts one user's files during a raw sync.
type UserSync struct {
	Processed int
	Uploaded  int
	Skipped   int
}

// SyncReport summarizes a raw sync across all users.
type SyncReport struct {
	Users     map[string]*UserSync
	Processed int
	Uploaded  int
	Skipped   int
}

// Uploader moves snapshot files to and from one S3 bucket.
type Uploader struct {
	log    *zap.SugaredLogger
	client api
	bucket string
}

// New creates an Uploader for the given bucket.
func New(log *zap.SugaredLogger, client api, bucket string) *Uploader {
	return &Uploader{log: log, client: client, bucket: bucket}
}

// SyncRaw uploads every collected snapshot that is not yet in the bucket
// under rawPrefix. Existing keys are skipped so re-runs are cheap. With
// dryRun set, missing files are only logged.
func (u *Uploader) SyncRaw(ctx context.Context, dataDir, rawPrefix string, dryRun bool) (*SyncReport, error) {
	collectedDir := filepath.Join(dataDir, "collected")
	entries, err := os.ReadDir(collectedDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SyncReport{Users: map[string]*UserSync{}}, nil
		}
		return nil, fmt.Errorf("reading collected directory: %w", err)
	}

	existing, err := u.listKeys(ctx, rawPrefix+"/")
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Users: map[string]*UserSync{}}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		userID := entry.Name()
		userReport, err := u.syncUser(ctx, filepath.Join(collectedDir, userID), userID, rawPrefix, existing, dryRun)
		if err != nil {
			return nil, fmt.Errorf("syncing user %s: %w", userID, err)
		}
		report.Users[userID] = userReport
		report.Processed += userReport.Processed
		report.Uploaded += userReport.Uploaded
		report.Skipped += userReport.Skipped
	}

	u.log.Infow("raw sync complete",
		"users", len(report.Users),
		"processed", report.Processed,
		"uploaded", report.Uploaded,
		"skipped", report.Skipped,
		"dry_run", dryRun,
	)
	return report, nil
}

func (u *Uploader) syncUser(ctx context.Context, dir, userID, rawPrefix string, existing map[string]bool, dryRun bool) (*UserSync, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading user directory: %w", err)
	}

	report := &UserSync{}
	for _, f := range files {
		if f.IsDir() || !uploadable(f.Name()) {
			continue
		}
		report.Processed++

		key := fmt.Sprintf("%s/%s/%s", rawPrefix, userID, f.Name())
		if existing[key] {
			report.Skipped++
			continue
		}

		if dryRun {
			u.log.Infow("would upload", "key", key)
			report.Uploaded++
			continue
		}

		if err := u.UploadFile(ctx, filepath.Join(dir, f.Name()), key); err != nil {
			return nil, err
		}
		report.Uploaded++
	}
	return report, nil
}

// UploadFile puts one local file into the bucket under key.
func (u *Uploader) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", u.bucket, key, err)
	}

	u.log.Infow("uploaded", "key", key)
	return nil
}

// DownloadFile fetches one object into localPath, creating parent
// directories as needed. Returns ErrNotFound for a missing key.
func (u *Uploader) DownloadFile(ctx context.Context, key, localPath string) error {
	out, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("s3://%s/%s: %w", u.bucket, key, ErrNotFound)
		}
		return fmt.Errorf("downloading s3://%s/%s: %w", u.bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// ListKeys returns the object keys under prefix, sorted.
func (u *Uploader) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	set, err := u.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (u *Uploader) listKeys(ctx context.Context, prefix string) (map[string]bool, error) {
	keys := map[string]bool{}
	var token *string
	for {
		out, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(u.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", u.bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys[*obj.Key] = true
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

func uploadable(name string) bool {
	switch filepath.Ext(name) {
	case ".csv", ".json", ".parquet":
		return true
	default:
		return false
	}
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".parquet":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func isNoSuchKey(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
