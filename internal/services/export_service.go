package services

import (
	"bytes"
	"strings"
	"time"

	"gorm.io/gorm"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/export"
	"lana/internal/models"
	"lana/internal/tiers"
)

// exportService renders transaction statements.
type exportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewExportService creates a new ExportServicer.
func NewExportService(db *gorm.DB) ExportServicer {
	return &exportService{db: db, now: time.Now}
}

func (s *exportService) load(userID string, feature tiers.Feature, from, to *dates.Date) (*models.User, []models.Transaction, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from")
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, nil, err
	}
	if !tiers.ForUser(user).Allows(feature) {
		return nil, nil, apperrors.ErrFeatureNotAvailable
	}

	var txs []models.Transaction
	q := applyTransactionFilters(s.db.Where("user_id = ?", userID), TransactionFilter{From: from, To: to})
	if err := q.Order("date ASC").Order("created_at ASC").Find(&txs).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, txs, nil
}

// ExportCSV returns the user's transactions between from and to as CSV.
func (s *exportService) ExportCSV(userID string, from, to *dates.Date) ([]byte, error) {
	_, txs, err := s.load(userID, tiers.FeatureExportCSV, from, to)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, txs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// ExportPDF returns the user's statement between from and to as PDF.
func (s *exportService) ExportPDF(userID string, from, to *dates.Date) ([]byte, error) {
	user, txs, err := s.load(userID, tiers.FeatureExportPDF, from, to)
	if err != nil {
		return nil, err
	}
	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if owner == "" {
		owner = user.Email
	}
	out, err := export.RenderPDF(export.Statement{
		Owner:       owner,
		Currency:    prefs.Currency,
		Period:      export.Period{From: from, To: to},
		GeneratedAt: s.now().In(prefs.Location()),
	}, txs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return out, nil
}
