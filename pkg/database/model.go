package database

import "time"

// DivergenceReport represents a record in the public.divergence_reports
// table: one row per report file reportbridge has forwarded.
type DivergenceReport struct {
	ID          int       `gorm:"primaryKey;column:id"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	DistinctOut int       `gorm:"column:distinct_out;not null"`
	HExit       uint32    `gorm:"column:h_exit;not null"`
	HCoarse     uint32    `gorm:"column:h_coarse;not null"`
	HFine       uint32    `gorm:"column:h_fine;not null"`
	InputSHA1   string    `gorm:"column:input_sha1;not null"`
	SummaryPath string    `gorm:"column:summary_path;not null"`
	SourcePath  string    `gorm:"column:source_path;not null"`
}
