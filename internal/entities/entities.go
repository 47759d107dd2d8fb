// Package entities loads the list of enterprises to enrich from a local file
// or an S3-compatible bucket.
package entities

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/model"
)

// Column names of the entity list.
const (
	ColumnID   = "ID"
	ColumnName = "NAME"
)

// ObjectGetter reads objects from a bucket.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Config holds the object storage credentials, read from the AWS_*
// environment variables by the config layer.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Insecure        bool   `mapstructure:"insecure"`
}

type minioGetter struct {
	client *minio.Client
}

// NewS3 creates an ObjectGetter backed by minio-go.
func NewS3(cfg S3Config) (ObjectGetter, error) {
	if cfg.Endpoint == "" {
		return nil, eris.New("entities: s3 endpoint is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: !cfg.Insecure,
	})
	if err != nil {
		return nil, eris.Wrap(err, "entities: create s3 client")
	}
	return &minioGetter{client: client}, nil
}

func (m *minioGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "entities: get s3://%s/%s", bucket, key)
	}
	// GetObject is lazy; Stat surfaces missing keys and bad credentials.
	if _, err := obj.Stat(); err != nil {
		obj.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "entities: stat s3://%s/%s", bucket, key)
	}
	return obj, nil
}

// Loader reads entity lists.
type Loader struct {
	objects   ObjectGetter
	delimiter rune
}

// Option configures a Loader.
type Option func(*Loader)

// WithObjectGetter enables s3:// paths.
func WithObjectGetter(g ObjectGetter) Option {
	return func(l *Loader) { l.objects = g }
}

// WithDelimiter overrides the CSV delimiter (default ';').
func WithDelimiter(r rune) Option {
	return func(l *Loader) { l.delimiter = r }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{delimiter: ';'}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the entity list at p, which is either s3://bucket/key or a
// local path. Files ending in .xlsx are read as workbooks, anything else as
// delimited text. Rows are deduplicated on (ID, NAME) keeping first
// appearance order.
func (l *Loader) Load(ctx context.Context, p string) ([]model.Entity, error) {
	rc, err := l.open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	var records []fetcher.Record
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, eris.Wrapf(err, "entities: read %s", p)
		}
		records, err = fetcher.ReadXLSX(data, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "entities: parse %s", p)
		}
	} else {
		records, err = l.readCSV(ctx, rc)
		if err != nil {
			return nil, eris.Wrapf(err, "entities: parse %s", p)
		}
	}

	out, err := fromRecords(records)
	if err != nil {
		return nil, eris.Wrapf(err, "entities: %s", p)
	}
	zap.L().Info("entities: loaded", zap.String("path", p), zap.Int("count", len(out)))
	return out, nil
}

func (l *Loader) open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, ok := splitS3(p)
	if !ok {
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrapf(err, "entities: open %s", p)
		}
		return f, nil
	}
	if l.objects == nil {
		return nil, eris.Errorf("entities: no object storage configured for %s", p)
	}
	return l.objects.GetObject(ctx, bucket, key)
}

func (l *Loader) readCSV(ctx context.Context, r io.Reader) ([]fetcher.Record, error) {
	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{Delimiter: l.delimiter})
	var out []fetcher.Record
	for rec := range rows {
		out = append(out, rec)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

// splitS3 splits s3://bucket/key.
func splitS3(p string) (bucket, key string, ok bool) {
	rest, ok := strings.CutPrefix(p, "s3://")
	if !ok {
		return "", "", false
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func fromRecords(records []fetcher.Record) ([]model.Entity, error) {
	seen := make(map[model.Entity]bool, len(records))
	out := make([]model.Entity, 0, len(records))
	for i, rec := range records {
		rawID, hasID := rec[ColumnID]
		name, hasName := rec[ColumnName]
		if !hasID || !hasName {
			return nil, eris.Errorf("row %d: missing %s or %s column", i+2, ColumnID, ColumnName)
		}
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, eris.Wrapf(err, "row %d: invalid %s %q", i+2, ColumnID, rawID)
		}
		e := model.Entity{ID: id, Name: name}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

// Parse reads a delimited entity list from r.
func Parse(ctx context.Context, r io.Reader, delimiter rune) ([]model.Entity, error) {
	l := NewLoader(WithDelimiter(delimiter))
	records, err := l.readCSV(ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "entities: parse")
	}
	return fromRecords(records)
}

