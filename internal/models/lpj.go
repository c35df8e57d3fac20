package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one row of the LPJ detail table. The advance (PUM) and
// settlement (LPJ) sides are paired; a row submitted with an empty
// settlement side settles against its own advance.
type LineItem struct {
	No           int             `json:"no"`
	DeskripsiPUM string          `json:"deskripsi_pum"`
	JumlahPUM    decimal.Decimal `json:"jumlah_pum"`
	DeskripsiLPJ string          `json:"deskripsi_lpj"`
	JumlahLPJ    decimal.Decimal `json:"jumlah_lpj"`
}

// ReportRequest is the transient input of one generation run. Field names
// match the submitting form's wire format.
type ReportRequest struct {
	NoRequest        string     `json:"no_request" binding:"required"`
	NamaPemohon      string     `json:"nama_pemohon"`
	Jabatan          string     `json:"jabatan"`
	NamaDepartemen   string     `json:"nama_departemen"`
	KodeDepartemen   string     `json:"kode_departemen"`
	Uraian           string     `json:"uraian"`
	NamaJenis        string     `json:"nama_jenis"`
	JmlRequest       string     `json:"jml_request"`
	JmlTerbilang     string     `json:"jml_terbilang"`
	NamaApproveVP    string     `json:"nama_approve_vp"`
	NamaApproveVPKeu string     `json:"nama_approve_vpkeu"`
	NamaApproveVPTre string     `json:"nama_approve_vptre"`
	TglLPJ           string     `json:"tgl_lpj" binding:"required"`
	RincianItems     []LineItem `json:"rincianItems" binding:"required,min=1"`

	// Client-supplied totals are accepted but never trusted; the pipeline
	// recomputes them from the line items before rendering.
	TotalPUM decimal.Decimal `json:"total_pum"`
	TotalLPJ decimal.Decimal `json:"total_lpj"`
}

// Normalize fills the settlement side of rows that only carry an advance
// side, so a single-pair submission renders through the same template path.
func (r *ReportRequest) Normalize() {
	for i := range r.RincianItems {
		item := &r.RincianItems[i]
		if item.DeskripsiLPJ == "" && item.JumlahLPJ.IsZero() {
			item.DeskripsiLPJ = item.DeskripsiPUM
			item.JumlahLPJ = item.JumlahPUM
		}
	}
}

// Validate checks the structural invariants of the request. Business
// semantics of the fields are out of scope here.
func (r *ReportRequest) Validate() error {
	if r.NoRequest == "" {
		return fmt.Errorf("no_request is required")
	}
	if _, err := r.ReportDate(); err != nil {
		return err
	}
	if len(r.RincianItems) == 0 {
		return fmt.Errorf("rincianItems must contain at least one item")
	}
	for i, item := range r.RincianItems {
		if item.JumlahPUM.IsNegative() {
			return fmt.Errorf("rincianItems[%d].jumlah_pum is negative", i)
		}
		if item.JumlahLPJ.IsNegative() {
			return fmt.Errorf("rincianItems[%d].jumlah_lpj is negative", i)
		}
	}
	return nil
}

// ReportDate parses tgl_lpj (submitted as an ISO calendar date).
func (r *ReportRequest) ReportDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", r.TglLPJ)
	if err != nil {
		return time.Time{}, fmt.Errorf("tgl_lpj is not a valid date: %w", err)
	}
	return t, nil
}

// Totals recomputes the authoritative totals from the line items.
func (r *ReportRequest) Totals() (totalPUM, totalLPJ decimal.Decimal) {
	for _, item := range r.RincianItems {
		totalPUM = totalPUM.Add(item.JumlahPUM)
		totalLPJ = totalLPJ.Add(item.JumlahLPJ)
	}
	return totalPUM, totalLPJ
}

// QRPayload is the deterministic string encoded into the QR code.
func (r *ReportRequest) QRPayload() string {
	return r.NoRequest
}
