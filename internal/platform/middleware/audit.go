package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sigchi/clinic/internal/platform/auth"
)

// AuditEntry records one access to a clinical record endpoint.
type AuditEntry struct {
	UserID     int64
	Role       string
	Resource   string // patients, doctors, appointments, histories
	RecordID   int64  // 0 for collection requests
	PatientID  int64  // set when the path names a patient
	Action     string // read, create, update, delete, cancel
	IPAddress  string
	Method     string
	Path       string
	StatusCode int
	RequestID  string
	Timestamp  time.Time
}

// AuditRecorder persists audit entries in addition to the structured log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

var auditedResources = map[string]bool{
	"patients":     true,
	"doctors":      true,
	"appointments": true,
	"histories":    true,
}

// Audit logs every request that touches patient, doctor, appointment or
// clinical history records, including denied ones. It must run after the
// auth middleware so the caller is known.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, rest, ok := splitResourcePath(req.URL.Path)
			if !ok {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusOf(err)
			}

			entry := AuditEntry{
				Resource:   resource,
				Action:     actionFor(req.Method, rest),
				IPAddress:  c.RealIP(),
				Method:     req.Method,
				Path:       req.URL.Path,
				StatusCode: status,
				RequestID:  requestID(c),
				Timestamp:  time.Now().UTC(),
			}
			if caller, ok := auth.CallerFromContext(req.Context()); ok {
				entry.UserID = caller.UserID
				entry.Role = caller.Role.String()
			}
			entry.RecordID, entry.PatientID = recordIDs(resource, rest)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if status == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Int64("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Int64("record_id", entry.RecordID).
				Int64("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// splitResourcePath turns "/api/histories/patient/7" into ("histories",
// ["patient", "7"]).
func splitResourcePath(path string) (string, []string, bool) {
	if !strings.HasPrefix(path, "/api/") {
		return "", nil, false
	}
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")
	if len(segments) == 0 || !auditedResources[segments[0]] {
		return "", nil, false
	}
	return segments[0], segments[1:], true
}

func actionFor(method string, rest []string) string {
	switch method {
	case http.MethodPost:
		if len(rest) == 2 && rest[1] == "cancel" {
			return "cancel"
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func recordIDs(resource string, rest []string) (recordID, patientID int64) {
	if len(rest) == 0 {
		return 0, 0
	}
	if resource == "histories" && len(rest) == 2 && rest[0] == "patient" {
		patientID, _ = strconv.ParseInt(rest[1], 10, 64)
		return 0, patientID
	}
	recordID, _ = strconv.ParseInt(rest[0], 10, 64)
	if resource == "patients" {
		patientID = recordID
	}
	return recordID, patientID
}
