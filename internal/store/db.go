package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("record not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&AnalysisHistory{}, &AgentRun{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveHistory inserts a history row.
func (d *Database) SaveHistory(h *AnalysisHistory) error {
	if h == nil {
		return errors.New("history is nil")
	}
	h.UserID = strings.TrimSpace(h.UserID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(h).Error
}

// HistoryQuery encapsulates filters and pagination for listing history rows.
type HistoryQuery struct {
	UserID    string
	InputType string
	Offset    int
	Limit     int
}

// ListHistory returns a user's rows newest first, plus the unpaged total.
func (d *Database) ListHistory(opts HistoryQuery) ([]AnalysisHistory, int64, error) {
	var total int64
	base := d.gorm.Model(&AnalysisHistory{}).Where("user_id = ?", strings.TrimSpace(opts.UserID))
	if t := strings.TrimSpace(opts.InputType); t != "" {
		base = base.Where("input_type = ?", strings.ToLower(t))
	}
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var rows []AnalysisHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GetHistory loads one row owned by userID.
func (d *Database) GetHistory(userID string, id uint) (*AnalysisHistory, error) {
	var row AnalysisHistory
	err := d.gorm.Where("id = ? AND user_id = ?", id, strings.TrimSpace(userID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RenameHistory sets the user-defined title. An empty title clears it.
func (d *Database) RenameHistory(userID string, id uint, title string) (*AnalysisHistory, error) {
	var value any
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		value = trimmed
	}
	d.mu.Lock()
	res := d.gorm.Model(&AnalysisHistory{}).
		Where("id = ? AND user_id = ?", id, strings.TrimSpace(userID)).
		Update("title", value)
	d.mu.Unlock()
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return d.GetHistory(userID, id)
}

// DeleteHistory removes one row owned by userID.
func (d *Database) DeleteHistory(userID string, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("id = ? AND user_id = ?", id, strings.TrimSpace(userID)).Delete(&AnalysisHistory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAgentRun inserts or updates the progress record of a run.
func (d *Database) SaveAgentRun(run *AgentRun) error {
	if run == nil {
		return errors.New("agent run is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "step", "total", "last_event_json", "result_json", "error", "updated_at"}),
	}).Create(run).Error
}

// GetAgentRun loads the progress record of a run.
func (d *Database) GetAgentRun(runID string) (*AgentRun, error) {
	var run AgentRun
	err := d.gorm.Where("run_id = ?", strings.TrimSpace(runID)).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
