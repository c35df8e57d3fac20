package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	s, err := NewArtifactStore(filepath.Join(t.TempDir(), "out"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestPathsAreUniquePerCall(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		for _, p := range []string{s.QRCodePath(), s.FilledTemplatePath(), s.FinalArtifactPath()} {
			assert.False(t, seen[p], "path %s generated twice", p)
			seen[p] = true
			assert.True(t, strings.HasPrefix(p, s.BaseDir()))
		}
	}
}

func TestSaveAndRemove(t *testing.T) {
	s := newTestStore(t)
	path := s.FinalArtifactPath()

	require.NoError(t, s.Save(path, []byte("%PDF- content")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF- content"), content)

	s.Remove(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again must be a silent no-op.
	s.Remove(path)
	s.Remove("")
}

func TestSaveRejectsEscapingPath(t *testing.T) {
	s := newTestStore(t)

	outside := filepath.Join(s.BaseDir(), "..", "escape.pdf")
	err := s.Save(outside, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestRecordOrphanAppends(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordOrphan(OrphanRecord{
		NoRequest: "REQ-240101-001",
		FilePath:  filepath.Join(s.BaseDir(), "a.pdf"),
		Reason:    "ledger write failed",
	}))
	require.NoError(t, s.RecordOrphan(OrphanRecord{
		NoRequest: "REQ-240101-002",
		FilePath:  filepath.Join(s.BaseDir(), "b.pdf"),
		Reason:    "ledger write failed",
	}))

	f, err := os.Open(filepath.Join(s.BaseDir(), "orphans.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var records []OrphanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec OrphanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "REQ-240101-001", records[0].NoRequest)
	assert.False(t, records[0].FailedAt.IsZero())
}
