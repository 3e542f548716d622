package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/leadflow/types"
)

// LeadStore persists the results of a scoring run.
type LeadStore interface {
	// SaveScores stores all scored leads under the given run ID.
	SaveScores(ctx context.Context, runID string, scores []types.ScoredLead) error
	// ScoresForRun returns the scores stored for one run, in insertion order.
	ScoresForRun(ctx context.Context, runID string) ([]types.ScoredLead, error)
	Close() error
}

// LeadRow is a raw contact record in the leads table, the database the fetch
// stage pulls from.
type LeadRow struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:255;not null"`
	JobTitle string `gorm:"size:255"`
	Company  string `gorm:"size:255"`
	Email    string `gorm:"size:255"`
	UseCase  string `gorm:"type:text"`
}

func (LeadRow) TableName() string { return "leads" }

// ScoredLeadRow is the persisted form of one scored lead. The full result is
// kept as a JSON payload; the scalar columns exist for querying.
type ScoredLeadRow struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:64;not null;index:idx_run"`
	LeadName  string    `gorm:"size:255;not null"`
	Company   string    `gorm:"size:255"`
	Score     int       `gorm:"not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the table name stable regardless of GORM's pluralization.
func (ScoredLeadRow) TableName() string { return "scored_leads" }

// SQLiteStore is the default LeadStore backed by a SQLite file.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenSQLite opens (and migrates) the database at path. Use ":memory:" for
// an in-process database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrConfiguration, "open lead store").WithCause(err)
	}
	if err := db.AutoMigrate(&LeadRow{}, &ScoredLeadRow{}); err != nil {
		return nil, types.NewError(types.ErrConfiguration, "migrate lead store").WithCause(err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveScores(ctx context.Context, runID string, scores []types.ScoredLead) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]ScoredLeadRow, 0, len(scores))
	for _, score := range scores {
		payload, err := json.Marshal(score)
		if err != nil {
			return types.NewError(types.ErrStageFailed, "encode scored lead").WithCause(err)
		}
		rows = append(rows, ScoredLeadRow{
			RunID:    runID,
			LeadName: score.PersonalInfo.Name,
			Company:  score.CompanyInfo.CompanyName,
			Score:    score.LeadScore.Score,
			Payload:  string(payload),
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return types.NewError(types.ErrStageFailed, "store scored leads").WithCause(err)
	}
	s.logger.Debug("stored scored leads",
		zap.String("run_id", runID),
		zap.Int("count", len(rows)))
	return nil
}

func (s *SQLiteStore) ScoresForRun(ctx context.Context, runID string) ([]types.ScoredLead, error) {
	var rows []ScoredLeadRow
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrStageFailed, "load scored leads").WithCause(err)
	}
	scores := make([]types.ScoredLead, 0, len(rows))
	for _, row := range rows {
		var score types.ScoredLead
		if err := json.Unmarshal([]byte(row.Payload), &score); err != nil {
			return nil, types.NewError(types.ErrStageFailed, "decode scored lead").WithCause(err)
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// Leads returns every contact in the leads table, in insertion order.
func (s *SQLiteStore) Leads(ctx context.Context) ([]types.LeadRecord, error) {
	var rows []LeadRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, types.NewError(types.ErrStageFailed, "load leads").WithCause(err)
	}
	leads := make([]types.LeadRecord, len(rows))
	for i, row := range rows {
		leads[i] = types.LeadRecord{
			Name:     row.Name,
			JobTitle: row.JobTitle,
			Company:  row.Company,
			Email:    row.Email,
			UseCase:  row.UseCase,
		}
	}
	return leads, nil
}

// SeedLeads inserts contacts into the leads table.
func (s *SQLiteStore) SeedLeads(ctx context.Context, leads []types.LeadRecord) error {
	if len(leads) == 0 {
		return nil
	}
	rows := make([]LeadRow, len(leads))
	for i, lead := range leads {
		rows[i] = LeadRow{
			Name:     lead.Name,
			JobTitle: lead.JobTitle,
			Company:  lead.Company,
			Email:    lead.Email,
			UseCase:  lead.UseCase,
		}
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return types.NewError(types.ErrStageFailed, "seed leads").WithCause(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
