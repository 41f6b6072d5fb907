package stress

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/xavl/lib/infra"
)

type RunStatus string

const (
	RunPassed    RunStatus = "passed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunReport is the summary of a stress run.
type RunReport struct {
	ID         string `gorm:"primaryKey;size:36"`
	Seed       int64
	Workers    int
	Iterations int64
	MaxNodes   int
	Verify     bool
	Rounds     int64
	Inserts    int64
	Removes    int64
	Lookups    int64
	MaxHeight  int
	Duration   time.Duration
	Status     RunStatus `gorm:"size:16;index"`
	Error      string
	CreatedAt  time.Time `gorm:"index"`
}

func newRunReport(cfg *Config) *RunReport {
	return &RunReport{
		ID:         uuid.NewString(),
		Seed:       cfg.Seed,
		Workers:    cfg.Workers,
		Iterations: cfg.Iterations,
		MaxNodes:   cfg.MaxNodes,
		Verify:     cfg.Verify,
		Status:     RunPassed,
	}
}

// ReportStore keeps the run reports in sqlite. A nil store drops them.
type ReportStore struct {
	db *gorm.DB
}

// OpenReportStore opens or creates the sqlite file at path.
func OpenReportStore(path string, logger glogger.Interface) (*ReportStore, error) {
	if len(path) == 0 {
		return nil, infra.NewErrorStack("[stress] empty report db path")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger,
	})
	if err != nil {
		return nil, infra.WrapErrorStack(err, "[stress] open report db")
	}
	return NewReportStore(db)
}

func NewReportStore(db *gorm.DB) (*ReportStore, error) {
	if err := db.AutoMigrate(&RunReport{}); err != nil {
		return nil, infra.WrapErrorStack(err, "[stress] migrate report db")
	}
	return &ReportStore{db: db}, nil
}

func (s *ReportStore) Save(ctx context.Context, report *RunReport) error {
	if s == nil || report == nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return infra.WrapErrorStack(err, "[stress] save run report")
	}
	return nil
}

// Get returns nil without error when the report does not exist.
func (s *ReportStore) Get(ctx context.Context, id string) (*RunReport, error) {
	if s == nil {
		return nil, nil
	}
	report := &RunReport{}
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, infra.WrapErrorStack(err, "[stress] get run report")
	}
	return report, nil
}

// Latest returns up to limit reports, newest first.
func (s *ReportStore) Latest(ctx context.Context, limit int) ([]RunReport, error) {
	if s == nil {
		return nil, nil
	}
	reports := make([]RunReport, 0, limit)
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, infra.WrapErrorStack(err, "[stress] list run reports")
	}
	return reports, nil
}

func (s *ReportStore) Close() error {
	if s == nil {
		return nil
	}
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
