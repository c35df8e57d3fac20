package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export streams the ledger as a spreadsheet for offline reconciliation.
func (h *Handler) Export(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch history for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error exporting LPJ history"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	f.SetCellValue(sheet, "A1", "ID")
	f.SetCellValue(sheet, "B1", "NoRequest")
	f.SetCellValue(sheet, "C1", "TglLPJ")
	f.SetCellValue(sheet, "D1", "FilePath")
	f.SetCellValue(sheet, "E1", "CreatedAt")

	for i, entry := range entries {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), entry.ID)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), entry.NoRequest)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), entry.TglLPJ.Format("2006-01-02"))
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), entry.FilePath)
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), entry.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	c.Header("Content-Disposition", `attachment; filename="lpj_history.xlsx"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Error streaming export to client", zap.Error(err))
	}
}
