package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OrphanRecord describes a final artifact that was durably written but
// never got its ledger entry. The artifact is kept; the record gives an
// operator a reconciliation path instead of a silent orphan.
type OrphanRecord struct {
	NoRequest string    `json:"no_request"`
	FilePath  string    `json:"file_path"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

const orphanListName = "orphans.jsonl"

var orphanMu sync.Mutex

// RecordOrphan appends one record to the pending-reconciliation list in the
// output directory. The list lives on the file system because it must be
// writable exactly when the ledger store is not.
func (s *ArtifactStore) RecordOrphan(rec OrphanRecord) error {
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now()
	}

	orphanMu.Lock()
	defer orphanMu.Unlock()

	path := filepath.Join(s.baseDir, orphanListName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open reconciliation list: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("failed to append reconciliation record: %w", err)
	}

	s.logger.Error("Artifact orphaned, recorded for reconciliation",
		zap.String("no_request", rec.NoRequest),
		zap.String("file_path", rec.FilePath),
		zap.String("reason", rec.Reason))
	return nil
}
