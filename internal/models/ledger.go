package models

import "time"

// LedgerEntry is the durable record of one successfully generated artifact.
// Entries are append-only; only the download and history endpoints read them.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	NoRequest string    `json:"no_request"`
	TglLPJ    time.Time `json:"tgl_lpj"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}
