package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for the storage pipeline. Owner-side identifiers
// (folder, share) and wire-side identifiers (message ID, usenet subject)
// never ride on the same span: the traces must not become the linkage the
// obfuscation scheme exists to prevent.
const (
	// Workflow attributes
	AttrOperation   = "vault.operation"
	AttrOperationID = "vault.operation_id"
	AttrFolderID    = "vault.folder_id"
	AttrVersion     = "vault.version"
	AttrShareID     = "vault.share_id"
	AttrAccessLevel = "vault.access_level"

	// Scanner attributes
	AttrScanRoot  = "scan.root"
	AttrScanFiles = "scan.files"
	AttrScanBytes = "scan.bytes"

	// Segment attributes
	AttrSegmentCount = "segment.count"
	AttrSegmentSize  = "segment.size"
	AttrRedundancy   = "segment.redundancy"
	AttrPackGroups   = "segment.pack_groups"

	// Transfer attributes (wire side)
	AttrProvider   = "nntp.provider"
	AttrNewsgroup  = "nntp.newsgroup"
	AttrMessageID  = "nntp.message_id"
	AttrResponse   = "nntp.response"
	AttrAttempt    = "transfer.attempt"
	AttrPosted     = "transfer.posted"
	AttrFetched    = "transfer.fetched"
	AttrFailed     = "transfer.failed"
	AttrRecovered  = "transfer.recovered"
	AttrBytesMoved = "transfer.bytes"

	// Pool attributes
	AttrPoolName = "pool.name"
	AttrPoolOpen = "pool.open"
	AttrPoolIdle = "pool.idle"

	// Store attributes
	AttrStoreBackend = "store.backend"
	AttrSpoolBackend = "spool.backend"
	AttrBatchSize    = "store.batch_size"
)

// Span names, <component>.<operation>.
const (
	SpanIndexRun    = "index.run"
	SpanScanWalk    = "scan.walk"
	SpanScanDiff    = "scan.diff"
	SpanSegmentFile = "segment.file"
	SpanSegmentPack = "segment.pack"
	SpanSegmentSeal = "segment.seal"

	SpanUploadRun   = "upload.run"
	SpanUploadPost  = "upload.post"
	SpanDownloadRun = "download.run"
	SpanFetch       = "download.fetch"
	SpanReassemble  = "download.reassemble"

	SpanPublish = "publish.create"
	SpanResolve = "publish.resolve"
	SpanRevoke  = "publish.revoke"

	SpanPoolAcquire = "pool.acquire"
	SpanPoolDial    = "pool.dial"

	SpanSpoolPut    = "spool.put"
	SpanSpoolGet    = "spool.get"
	SpanIndexCommit = "index.commit"
)

// Operation returns an attribute naming a workflow (index, upload,
// download, publish).
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// OperationID returns an attribute for a background operation ID.
func OperationID(id string) attribute.KeyValue {
	return attribute.String(AttrOperationID, id)
}

// FolderID returns an attribute for a folder identity.
func FolderID(id string) attribute.KeyValue {
	return attribute.String(AttrFolderID, id)
}

// Version returns an attribute for a folder version.
func Version(v uint32) attribute.KeyValue {
	return attribute.Int64(AttrVersion, int64(v))
}

// ShareID returns an attribute for a share handle.
func ShareID(id string) attribute.KeyValue {
	return attribute.String(AttrShareID, id)
}

// AccessLevel returns an attribute for a publication's access level.
func AccessLevel(level string) attribute.KeyValue {
	return attribute.String(AttrAccessLevel, level)
}

// Provider returns an attribute for an NNTP provider name.
func Provider(name string) attribute.KeyValue {
	return attribute.String(AttrProvider, name)
}

// Newsgroup returns an attribute for the posting group.
func Newsgroup(group string) attribute.KeyValue {
	return attribute.String(AttrNewsgroup, group)
}

// MessageID returns an attribute for an article message ID. Wire side
// only; never combine with FolderID or ShareID on one span.
func MessageID(id string) attribute.KeyValue {
	return attribute.String(AttrMessageID, id)
}

// Response returns an attribute for an NNTP response code.
func Response(code int) attribute.KeyValue {
	return attribute.Int(AttrResponse, code)
}

// Attempt returns an attribute for a retry ordinal, counting from zero.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// SegmentCount returns an attribute for a run's segment total.
func SegmentCount(n int) attribute.KeyValue {
	return attribute.Int(AttrSegmentCount, n)
}

// Redundancy returns an attribute for the copies sealed per segment.
func Redundancy(n uint8) attribute.KeyValue {
	return attribute.Int(AttrRedundancy, int(n))
}

// BytesMoved returns an attribute for bytes posted or fetched.
func BytesMoved(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesMoved, n)
}

// PoolName returns an attribute for a session pool.
func PoolName(name string) attribute.KeyValue {
	return attribute.String(AttrPoolName, name)
}

// StoreBackend returns an attribute for an index backend ("badger",
// "postgres").
func StoreBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrStoreBackend, backend)
}

// SpoolBackend returns an attribute for a spool backend ("fs", "s3").
func SpoolBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrSpoolBackend, backend)
}

// BatchSize returns an attribute for an index batch's record count.
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// StartWorkflowSpan starts a span for one coordinator workflow over a
// folder. The operation ID links the span to the operations registry.
func StartWorkflowSpan(ctx context.Context, span, opID, folderID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := []attribute.KeyValue{OperationID(opID)}
	if folderID != "" {
		all = append(all, FolderID(folderID))
	}
	all = append(all, attrs...)
	return StartSpan(ctx, span, trace.WithAttributes(all...))
}

// StartTransferSpan starts a span for one wire operation against a
// provider. Carries wire identifiers only.
func StartTransferSpan(ctx context.Context, span, provider string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := []attribute.KeyValue{Provider(provider)}
	all = append(all, attrs...)
	return StartSpan(ctx, span, trace.WithAttributes(all...))
}

// StartShareSpan starts a span for a publication operation.
func StartShareSpan(ctx context.Context, span, shareID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := []attribute.KeyValue{ShareID(shareID)}
	all = append(all, attrs...)
	return StartSpan(ctx, span, trace.WithAttributes(all...))
}
