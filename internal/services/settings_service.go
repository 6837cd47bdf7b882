package services

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/settings"
)

// settingsService handles the per-user settings document.
type settingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsServicer.
func NewSettingsService(db *gorm.DB) SettingsServicer {
	return &settingsService{db: db}
}

// loadSettings returns the user's settings migrated to the current schema,
// or the defaults when nothing is stored yet.
func loadSettings(db *gorm.DB, userID string) (settings.Settings, error) {
	var row models.UserSettings
	err := db.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s, err := settings.Load(row.Document)
	if err != nil {
		return settings.Settings{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s, nil
}

// GetSettings returns the user's settings. Documents stored by older
// versions are migrated on read and written back.
func (s *settingsService) GetSettings(userID string) (*settings.Settings, error) {
	var row models.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := settings.Default()
		return &d, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	prefs, err := settings.Load(row.Document)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if row.SchemaVersion < settings.CurrentVersion {
		if err := s.save(userID, prefs); err != nil {
			return nil, err
		}
	}
	return &prefs, nil
}

// UpdateSettings validates and stores a full settings document.
func (s *settingsService) UpdateSettings(userID string, prefs settings.Settings) (*settings.Settings, error) {
	prefs.SchemaVersion = settings.CurrentVersion
	if err := prefs.Validate(); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSettings, err.Error())
	}
	if err := s.save(userID, prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (s *settingsService) save(userID string, prefs settings.Settings) error {
	doc, err := prefs.Encode()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	row := &models.UserSettings{
		UserID:        userID,
		SchemaVersion: settings.CurrentVersion,
		Document:      datatypes.JSON(doc),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "document", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
