package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

const maxExportRows = 10000

// Service generates XLSX exports of ledger histories and payout recaps
// for finance reconciliation.
type Service struct {
	db *gorm.DB
}

// NewService creates a new export service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LedgerHistory exports an affiliate's ledger entries as an XLSX workbook
func (s *Service) LedgerHistory(ctx context.Context, affiliateID uint) ([]byte, string, error) {
	var affiliate models.Affiliate
	if err := s.db.WithContext(ctx).First(&affiliate, affiliateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", domain.NewNotFoundError("affiliate")
		}
		return nil, "", domain.NewInternalError(err)
	}

	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("id asc").
		Limit(maxExportRows).
		Find(&entries).Error
	if err != nil {
		return nil, "", domain.NewInternalError(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Ledger"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to create sheet: %w", err))
	}
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to create style: %w", err))
	}

	headers := []string{
		"ID", "Date", "Kind", "Amount", "Running Balance", "Actor", "Note", "Transaction Ref",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	var running int64
	for rowIdx, entry := range entries {
		running += entry.Signed()
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), entry.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), entry.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(entry.Kind))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), entry.Signed())
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), running)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), entry.Actor)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), entry.Note)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), entry.TransactionRef)
	}

	for i := 0; i < len(headers); i++ {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 18)
	}
	f.SetActiveSheet(index)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to write workbook: %w", err))
	}

	filename := fmt.Sprintf("ledger-%s-%s.xlsx", affiliate.AffiliateCode, time.Now().Format("20060102-150405"))
	return buf.Bytes(), filename, nil
}

// PayoutRecap exports all payout requests in a date range, one row per
// request, including bank snapshots and settlement refs.
func (s *Service) PayoutRecap(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	if to.Before(from) {
		return nil, "", domain.NewValidationError("date range end is before start")
	}

	var requests []models.PayoutRequest
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at asc").
		Limit(maxExportRows).
		Find(&requests).Error
	if err != nil {
		return nil, "", domain.NewInternalError(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Payouts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to create sheet: %w", err))
	}
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to create style: %w", err))
	}

	headers := []string{
		"ID", "Affiliate ID", "Requested At", "Amount", "Status",
		"Bank", "Account Number", "Account Holder",
		"Resolved At", "Resolved By", "Transaction Ref", "Name Check", "Rejection Reason",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, req := range requests {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), req.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), req.AffiliateID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), req.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), req.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), string(req.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), req.BankNameSnapshot)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), req.AccountNumberSnapshot)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), req.AccountHolderSnapshot)
		if req.ResolvedAt != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), req.ResolvedAt.Format("2006-01-02 15:04:05"))
		}
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), req.ResolvedBy)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), req.TransactionRef)
		f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), string(req.NameCheck))
		f.SetCellValue(sheetName, fmt.Sprintf("M%d", row), req.RejectionReason)
	}

	for i := 0; i < len(headers); i++ {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 18)
	}
	f.SetActiveSheet(index)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", domain.NewInternalError(fmt.Errorf("failed to write workbook: %w", err))
	}

	filename := fmt.Sprintf("payouts-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}
