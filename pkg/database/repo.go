package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AddDivergenceReport inserts a single divergence report record.
func AddDivergenceReport(ctx context.Context, db *gorm.DB, report *DivergenceReport) error {
	if report == nil {
		return nil
	}
	return db.WithContext(ctx).Create(report).Error
}

// NewDivergenceReport creates a new DivergenceReport object with the
// provided parameters.
func NewDivergenceReport(
	distinctOut int,
	hExit, hCoarse, hFine uint32,
	inputSHA1 string,
	summaryPath string,
	sourcePath string,
) *DivergenceReport {
	return &DivergenceReport{
		CreatedAt:   time.Now(),
		DistinctOut: distinctOut,
		HExit:       hExit,
		HCoarse:     hCoarse,
		HFine:       hFine,
		InputSHA1:   inputSHA1,
		SummaryPath: summaryPath,
		SourcePath:  sourcePath,
	}
}
