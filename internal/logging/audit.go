package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// Mailbox events
	AuditTaskWritten  AuditEventType = "task_written"
	AuditTaskConsumed AuditEventType = "task_consumed"
	AuditTaskDeferred AuditEventType = "task_deferred"

	// Inference events
	AuditInferenceRequest AuditEventType = "inference_request"
	AuditInferenceReply   AuditEventType = "inference_reply"
	AuditInferenceError   AuditEventType = "inference_error"

	// Session events
	AuditSessionReset    AuditEventType = "session_reset"
	AuditSessionRollback AuditEventType = "session_rollback"
	AuditSessionRewrite  AuditEventType = "session_rewrite"
	AuditStackClassified AuditEventType = "stack_classified"
)

// AuditEvent is a structured audit log entry written as one JSON line.
type AuditEvent struct {
	EventType  AuditEventType
	SessionID  string
	Kind       string
	Success    bool
	DurationMs int64
	Error      string
	Message    string
	Fields     map[string]interface{}
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditZap  *zap.Logger
)

// AuditLogger writes audit events scoped to a session.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens the audit log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.jsonl", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	auditFile = file
	auditZap = zap.New(core)
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap != nil {
		_ = auditZap.Sync()
		auditZap = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap == nil {
		return
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.String("session", event.SessionID),
		zap.Bool("success", event.Success),
	}
	if event.Kind != "" {
		fields = append(fields, zap.String("kind", event.Kind))
	}
	if event.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.DurationMs))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Fields) > 0 {
		fields = append(fields, zap.Any("fields", event.Fields))
	}
	auditZap.Info(event.Message, fields...)
}

// TaskConsumed records a descriptor leaving the mailbox.
func (a *AuditLogger) TaskConsumed(kind string) {
	a.Log(AuditEvent{EventType: AuditTaskConsumed, Kind: kind, Success: true})
}

// InferenceResult records the outcome of a model call.
func (a *AuditLogger) InferenceResult(purpose string, dur time.Duration, err error) {
	ev := AuditEvent{
		EventType:  AuditInferenceReply,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
		Fields:     map[string]interface{}{"purpose": purpose},
	}
	if err != nil {
		ev.EventType = AuditInferenceError
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// SessionRollback records a session being truncated after a failed call.
func (a *AuditLogger) SessionRollback(from, to int) {
	a.Log(AuditEvent{
		EventType: AuditSessionRollback,
		Success:   true,
		Fields:    map[string]interface{}{"from": from, "to": to},
	})
}
