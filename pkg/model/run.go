package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

type Run struct {
	RunID     string    `gorm:"primaryKey;type:varchar(64)" json:"run_id"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Status    RunStatus `gorm:"type:varchar(20);default:'running';index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRunID returns an identifier with a sortable UTC timestamp prefix and a
// random suffix, e.g. 20240115_093042_a1b2c3d4.
func NewRunID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s", ts, suffix)
}

func (r RunStatus) Terminal() bool {
	return r == RunSuccess || r == RunError
}
