package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type LogType string

const (
	LogStatus   LogType = "status"
	LogCode     LogType = "code"
	LogInfo     LogType = "info"
	LogStart    LogType = "start"
	LogEnd      LogType = "end"
	LogResult   LogType = "result"
	LogSuccess  LogType = "success"
	LogError    LogType = "error"
	LogWarning  LogType = "warning"
	LogProgress LogType = "progress"

	// Phase-completion markers.
	LogSpecsGenerated           LogType = "specs_generated"
	LogGlueCodeGenerated        LogType = "glue_code_generated"
	LogGlueExecutionCompleted   LogType = "glue_execution_completed"
	LogTestCasesGenerated       LogType = "test_cases_generated"
	LogQueryGenerated           LogType = "query_generated"
	LogQueryExecuted            LogType = "query_executed"
	LogTestCasesExecuted        LogType = "test_cases_executed"
	LogValidationPhaseCompleted LogType = "validation_phase_completed"
	LogRemediationCompleted     LogType = "remediation_completed"
)

// Terminal reports whether a log type ends a run.
func (t LogType) Terminal() bool {
	return t == LogSuccess || t == LogError
}

// LogEntry is one immutable record in a run's audit log. The auto-increment
// ID fixes append order within a run; rows are never updated or deleted.
type LogEntry struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID       string    `gorm:"type:varchar(64);not null;index:idx_run_logs_run" json:"run_id"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	Type        LogType   `gorm:"type:varchar(40);not null" json:"type"`
	Title       string    `gorm:"type:text" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Metadata    JSONB     `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (LogEntry) TableName() string {
	return "run_logs"
}

// NewLogEntry stamps an entry with the current UTC time. RunID is filled in
// by the store on append.
func NewLogEntry(logType LogType, title, description string, metadata JSONB) *LogEntry {
	return &LogEntry{
		Timestamp:   time.Now().UTC(),
		Type:        logType,
		Title:       title,
		Description: description,
		Metadata:    metadata,
	}
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) GormDataType() string {
	return "jsonb"
}
