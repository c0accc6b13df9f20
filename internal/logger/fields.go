package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that aggregated
// logs from the scanner, segmenter, upload and download engines can be
// queried with a single vocabulary.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Workflow & Operation
	// ========================================================================
	KeyOperation   = "operation"    // Workflow name: index, upload, publish, download
	KeyOperationID = "operation_id" // Coordinator operation identifier
	KeyPhase       = "phase"        // Workflow phase within an operation

	// ========================================================================
	// Entities
	// ========================================================================
	KeyUserID    = "user_id"    // Owning storage user
	KeyFolderID  = "folder_id"  // Folder identifier
	KeyFileID    = "file_id"    // File identifier
	KeyShareID   = "share_id"   // Publication share handle
	KeyVersion   = "version"    // Folder or file version
	KeyPath      = "path"       // Path on the local filesystem
	KeyRelPath   = "rel_path"   // Path relative to the folder root
	KeySize      = "size"       // Byte length
	KeyPackGroup = "pack_group" // Pack group identifier

	// ========================================================================
	// Segments & Articles
	// ========================================================================
	KeySegmentID    = "segment_id"    // Segment identifier
	KeySegmentIndex = "segment_index" // Ordinal within the parent file
	KeyRedundancy   = "redundancy"    // Redundancy copy index
	KeyMessageID    = "message_id"    // Posted article Message-ID
	KeySubject      = "subject"       // Wire subject (never the internal subject)
	KeyNewsgroup    = "newsgroup"     // Target newsgroup
	KeySegmentState = "state"         // Segment lifecycle state

	// ========================================================================
	// NNTP Provider & Pool
	// ========================================================================
	KeyProvider    = "provider"     // Provider name from config
	KeyHost        = "host"         // Provider host
	KeyConnID      = "conn_id"      // Pooled connection identifier
	KeyIdleConns   = "idle_conns"   // Idle connections in the pool
	KeyOpenConns   = "open_conns"   // Open connections in the pool
	KeyNNTPCode    = "nntp_code"    // NNTP response code
	KeyNNTPMessage = "nntp_message" // NNTP response text

	// ========================================================================
	// Transfer
	// ========================================================================
	KeyQueueDepth   = "queue_depth"   // Pending entries in a work queue
	KeyWorkers      = "workers"       // Worker count
	KeyAttempt      = "attempt"       // Retry attempt number
	KeyMaxRetries   = "max_retries"   // Maximum retry attempts
	KeyBackoff      = "backoff"       // Backoff before the next attempt
	KeyBytesPosted  = "bytes_posted"  // Bytes posted upstream
	KeyBytesFetched = "bytes_fetched" // Bytes fetched from upstream
	KeyBytesWritten = "bytes_written" // Plaintext bytes written to disk

	// ========================================================================
	// Storage Backends
	// ========================================================================
	KeyStoreName = "store_name" // Named backend from the registry
	KeyStoreType = "store_type" // Backend type: badger, postgres, fs, s3
	KeyBucket    = "bucket"     // S3 bucket for the article spool
	KeyKey       = "key"        // Object key in the spool
	KeyRegion    = "region"     // S3 region

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Taxonomy error code
	KeyCount      = "count"       // Generic item count
	KeyRequestID  = "request_id"  // API request ID
	KeyClientIP   = "client_ip"   // API client address
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for the workflow name
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// OperationID returns a slog.Attr for the coordinator operation ID
func OperationID(id string) slog.Attr {
	return slog.String(KeyOperationID, id)
}

// FolderID returns a slog.Attr for a folder identifier
func FolderID(id string) slog.Attr {
	return slog.String(KeyFolderID, id)
}

// FileID returns a slog.Attr for a file identifier
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// ShareID returns a slog.Attr for a share handle
func ShareID(id string) slog.Attr {
	return slog.String(KeyShareID, id)
}

// Path returns a slog.Attr for a local filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// RelPath returns a slog.Attr for a folder-relative path
func RelPath(p string) slog.Attr {
	return slog.String(KeyRelPath, p)
}

// Size returns a slog.Attr for a byte length
func Size(n uint64) slog.Attr {
	return slog.Uint64(KeySize, n)
}

// SegmentID returns a slog.Attr for a segment identifier
func SegmentID(id string) slog.Attr {
	return slog.String(KeySegmentID, id)
}

// SegmentIndex returns a slog.Attr for a segment ordinal
func SegmentIndex(i uint32) slog.Attr {
	return slog.Int(KeySegmentIndex, int(i))
}

// Redundancy returns a slog.Attr for a redundancy copy index
func Redundancy(copy uint8) slog.Attr {
	return slog.Int(KeyRedundancy, int(copy))
}

// MessageID returns a slog.Attr for an article Message-ID
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// Newsgroup returns a slog.Attr for a target newsgroup
func Newsgroup(g string) slog.Attr {
	return slog.String(KeyNewsgroup, g)
}

// Provider returns a slog.Attr for an NNTP provider name
func Provider(name string) slog.Attr {
	return slog.String(KeyProvider, name)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// StoreName returns a slog.Attr for a named backend
func StoreName(name string) slog.Attr {
	return slog.String(KeyStoreName, name)
}

// StoreType returns a slog.Attr for a backend type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// DurationMs returns a slog.Attr for elapsed milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error message
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Count returns a slog.Attr for a generic item count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
