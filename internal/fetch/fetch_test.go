package fetch_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/fetch"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
)

func setupService(t *testing.T) service.Service {
	t.Helper()
	r, err := repo.Init(false, false, t.TempDir())
	require.NoError(t, err, "init repository")
	svc, err := dms.Open(context.Background(), r, &config.Config{})
	require.NoError(t, err, "open service")
	t.Cleanup(func() { svc.Close() })
	return svc
}

func ingest(t *testing.T, svc service.Service, filename, content string) {
	t.Helper()
	_, err := svc.Ingest(context.Background(), filename, strings.NewReader(content), "tester", service.IngestOptions{})
	require.NoError(t, err)
}

func TestRun_Content(t *testing.T) {
	svc := setupService(t)
	ingest(t, svc, "ADL-1001.txt", "first\n")
	ingest(t, svc, "ADL-1001.txt", "second\n")

	var buf bytes.Buffer
	res, err := fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{})
	require.NoError(t, err)
	assert.Equal(t, "second\n", buf.String())
	assert.Equal(t, 2, res.Revision)

	buf.Reset()
	_, err = fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{Revision: 1})
	require.NoError(t, err)
	assert.Equal(t, "first\n", buf.String())
}

func TestRun_LineRange(t *testing.T) {
	svc := setupService(t)
	ingest(t, svc, "ADL-1001.txt", "a\nb\nc\nd\n")

	tests := []struct {
		name string
		opts fetch.Options
		want string
	}{
		{"middle", fetch.Options{StartLine: 2, EndLine: 3}, "b\nc\n"},
		{"from", fetch.Options{StartLine: 4}, "d\n"},
		{"numbered", fetch.Options{EndLine: 1, LineNumbers: true}, "     1\ta\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := fetch.Run(context.Background(), &buf, svc, "ADL-1001", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRun_BinaryRange(t *testing.T) {
	svc := setupService(t)
	ingest(t, svc, "ADL-1001.bin", "a\x00b")
	_, err := fetch.Run(context.Background(), &bytes.Buffer{}, svc, "ADL-1001", fetch.Options{StartLine: 1})
	assert.ErrorIs(t, err, fetch.ErrBinaryRange)
}

func TestRun_Output(t *testing.T) {
	svc := setupService(t)
	ingest(t, svc, "ADL-1001.txt", "payload")
	dir := t.TempDir()

	var buf bytes.Buffer
	res, err := fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{Output: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ADL-1001.txt"), res.Path)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Contains(t, buf.String(), "Wrote ADL-1001 revision 1")

	_, err = fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{Output: res.Path})
	assert.ErrorContains(t, err, "exists")

	_, err = fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{Output: res.Path, Force: true})
	assert.NoError(t, err)
}

func TestRun_Metadata(t *testing.T) {
	svc := setupService(t)
	ingest(t, svc, "ADL-1001.txt", "payload")

	var buf bytes.Buffer
	res, err := fetch.Run(context.Background(), &buf, svc, "ADL-1001", fetch.Options{OnlyMetadata: true})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Contains(t, buf.String(), "Code:        ADL-1001")
}

func TestRun_NotFound(t *testing.T) {
	svc := setupService(t)
	_, err := fetch.Run(context.Background(), &bytes.Buffer{}, svc, "ADL-9999", fetch.Options{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
