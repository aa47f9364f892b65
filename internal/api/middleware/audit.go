package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchsec/commnode/internal/core"
)

const (
	auditBufferSize   = 1024
	auditWriteTimeout = 5 * time.Second
)

// AuditLogger records mutating API requests in audit_logs. Entries are
// written by a single background goroutine; when its buffer is full new
// entries are dropped with a warning.
type AuditLogger struct {
	db     core.DB
	logger zerolog.Logger
	ch     chan auditEntry
	done   chan struct{}

	// mu guards closed; senders hold it shared so Close cannot close ch under them.
	mu     sync.RWMutex
	closed bool
}

type auditEntry struct {
	CredentialID *int64
	Method       string
	Path         string
	ResourceType *string
	ResourceID   *string
	StatusCode   int
	RequestBody  json.RawMessage
}

func NewAuditLogger(db core.DB, logger zerolog.Logger) *AuditLogger {
	al := &AuditLogger{
		db:     db,
		logger: logger,
		ch:     make(chan auditEntry, auditBufferSize),
		done:   make(chan struct{}),
	}
	go al.drain()
	return al
}

func (al *AuditLogger) drain() {
	defer close(al.done)
	for entry := range al.ch {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		_, err := al.db.Exec(ctx,
			`INSERT INTO audit_logs (api_key_id, method, path, resource_type, resource_id, status_code, request_body)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.CredentialID, entry.Method, entry.Path, entry.ResourceType, entry.ResourceID, entry.StatusCode, entry.RequestBody,
		)
		cancel()
		if err != nil {
			al.logger.Error().Err(err).Str("path", entry.Path).Msg("failed to write audit log")
		}
	}
}

// Close stops accepting entries and waits until the buffered ones are written.
// Requests still running afterwards are not recorded.
func (al *AuditLogger) Close() {
	al.mu.Lock()
	if !al.closed {
		al.closed = true
		close(al.ch)
	}
	al.mu.Unlock()
	<-al.done
}

func (al *AuditLogger) enqueue(entry auditEntry) {
	al.mu.RLock()
	defer al.mu.RUnlock()
	if al.closed {
		al.logger.Warn().Str("path", entry.Path).Msg("audit logger closed, dropping entry")
		return
	}
	select {
	case al.ch <- entry:
	default:
		al.logger.Warn().Str("path", entry.Path).Msg("audit log buffer full, dropping entry")
	}
}

// Middleware records POST, PUT, PATCH and DELETE requests once they complete.
func (al *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			// Oversized bodies are passed on whole so RequireJSON can reject them.
			r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			if len(body) > maxBodyBytes {
				body = nil
			}
		}

		// The credential is attached further down the chain; this pointer
		// lets the inner handler report it back.
		holder := &credentialHolder{}
		ctx := context.WithValue(r.Context(), credentialHolderKey, holder)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		entry := auditEntry{
			CredentialID: holder.id,
			Method:       r.Method,
			Path:         r.URL.Path,
			StatusCode:   sw.status,
		}
		entry.ResourceType, entry.ResourceID = extractResource(r.URL.Path)
		if len(body) > 0 && json.Valid(body) {
			entry.RequestBody = sanitizeBody(body)
		}

		al.enqueue(entry)
	})
}

type readCloser struct {
	io.Reader
	io.Closer
}

const credentialHolderKey contextKey = "audit_credential"

type credentialHolder struct {
	id *int64
}

// noteCredential lets the audit middleware see the credential admitted by
// RequireAccess, which runs on an inner context.
func noteCredential(ctx context.Context, id int64) {
	if h, ok := ctx.Value(credentialHolderKey).(*credentialHolder); ok {
		h.id = &id
	}
}

// routeActions are trailing path segments naming an action on the preceding
// resource rather than a nested collection.
var routeActions = map[string]bool{"solve": true}

// extractResource derives the addressed resource from an API path:
//
//	/api/businesses          -> businesses
//	/api/businesses/3        -> businesses, 3
//	/api/businesses/3/devices -> devices
//	/api/alerts/9/solve      -> alerts, 9
//	/api/send_alert          -> send_alert
func extractResource(path string) (*string, *string) {
	var resourceType, resourceID *string
	afterID := false
	for _, part := range strings.Split(strings.TrimPrefix(path, "/api/"), "/") {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil && resourceType != nil {
			p := part
			resourceID = &p
			afterID = true
			continue
		}
		if afterID && routeActions[part] {
			continue
		}
		p := part
		resourceType = &p
		resourceID = nil
		afterID = false
	}
	return resourceType, resourceID
}

// sensitiveFields are redacted from recorded request bodies.
var sensitiveFields = map[string]bool{
	"api_key": true, "secret": true, "token": true, "password": true,
}

func sanitizeBody(body []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}
	for k := range data {
		if sensitiveFields[k] {
			data[k] = "[REDACTED]"
		}
	}
	sanitized, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return sanitized
}
