package entities

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

const sample = "ID;NAME;COUNTRY\n1;SAP SE;DE\n2;SIEMENS AG;DE\n1;SAP SE;DE\n3;SAP SE;DE\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_LocalCSV(t *testing.T) {
	p := writeFile(t, "mnes.csv", sample)

	got, err := NewLoader().Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{
		{ID: 1, Name: "SAP SE"},
		{ID: 2, Name: "SIEMENS AG"},
		{ID: 3, Name: "SAP SE"},
	}, got)
}

func TestLoad_LocalXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("mnes")
	require.NoError(t, err)
	for _, r := range [][]string{{"ID", "NAME"}, {"10", "TOTALENERGIES SE"}, {"11", "AIRBUS SE"}} {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	p := writeFile(t, "mnes.xlsx", buf.String())

	got, err := NewLoader().Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{{ID: 10, Name: "TOTALENERGIES SE"}, {ID: 11, Name: "AIRBUS SE"}}, got)
}

func TestLoad_S3(t *testing.T) {
	objects := &mockObjects{}
	objects.On("GetObject", mock.Anything, "projet-mne", "data/mnes.csv").
		Return(io.NopCloser(strings.NewReader(sample)), nil)

	got, err := NewLoader(WithObjectGetter(objects)).Load(context.Background(), "s3://projet-mne/data/mnes.csv")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	objects.AssertExpectations(t)
}

func TestLoad_S3Error(t *testing.T) {
	objects := &mockObjects{}
	objects.On("GetObject", mock.Anything, "b", "k.csv").Return(nil, errors.New("access denied"))

	_, err := NewLoader(WithObjectGetter(objects)).Load(context.Background(), "s3://b/k.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestLoad_S3NotConfigured(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "s3://b/k.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no object storage")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestLoad_MissingColumn(t *testing.T) {
	p := writeFile(t, "bad.csv", "ID;LABEL\n1;SAP SE\n")
	_, err := NewLoader().Load(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing ID or NAME")
}

func TestLoad_InvalidID(t *testing.T) {
	p := writeFile(t, "bad.csv", "ID;NAME\nx1;SAP SE\n")
	_, err := NewLoader().Load(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ID")
}

func TestParse_CustomDelimiter(t *testing.T) {
	got, err := Parse(context.Background(), strings.NewReader("ID,NAME\n4,ENGIE SA\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{{ID: 4, Name: "ENGIE SA"}}, got)
}

func TestSplitS3(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://bucket/a/b.csv", "bucket", "a/b.csv", true},
		{"s3://bucket", "", "", false},
		{"s3:///key", "", "", false},
		{"/tmp/file.csv", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, k, ok := splitS3(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.key, k)
		})
	}
}

func TestNewS3_RequiresEndpoint(t *testing.T) {
	_, err := NewS3(S3Config{})
	require.Error(t, err)

	g, err := NewS3(S3Config{Endpoint: "https://minio.example.com", AccessKeyID: "a", SecretAccessKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, g)
}
