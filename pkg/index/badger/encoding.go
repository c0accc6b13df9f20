package badger

import (
	"encoding/json"
	"fmt"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// index tables into logical namespaces. Primary records live under keys
// whose natural byte order matches the order the contract promises for
// scans: file records group by path with versions ascending inside each
// path, so one forward scan resolves the newest record per path; segments
// sort by (parent, index, redundancy). ID and Message-ID lookups go
// through small pointer entries that hold the primary key.
//
// Key Namespace Prefixes:
//
// Data Type          Prefix  Key Format                                         Value Type
// =========================================================================================
// File Records       "f:"    f:<folderID>:<path>\x00<version>                   File (JSON)
// File ID Index      "fi:"   fi:<fileID>                                        primary key (bytes)
// Pack Groups        "g:"    g:<folderID>:<version>:<groupID>                   PackGroup (JSON)
// Pack Group Index   "gi:"   gi:<groupID>                                       primary key (bytes)
// Segment Records    "s:"    s:<folderID>:<version>:<parentID>:<index>:<red>    Segment (JSON)
// Segment ID Index   "si:"   si:<segmentID>                                     primary key (bytes)
// Message-ID Index   "sm:"   sm:<messageID>                                     primary key (bytes)
//
// Folder IDs are 64 hex characters and record IDs are UUIDs, so neither
// can contain the ":" separator. Version and segment index render as
// fixed-width hex to keep lexicographic and numeric order identical. The
// file path sits mid-key, terminated by a NUL byte: paths cannot contain
// NUL, and NUL sorts below every path byte, so "a" still precedes "a.txt"
// and the version suffix never bleeds into path comparison.

const (
	prefixFile        = "f:"
	prefixFileID      = "fi:"
	prefixPackGroup   = "g:"
	prefixPackGroupID = "gi:"
	prefixSegment     = "s:"
	prefixSegmentID   = "si:"
	prefixMessageID   = "sm:"
)

// ============================================================================
// Key Generation Functions
// ============================================================================

// keyFile generates the primary key for a file record.
func keyFile(folderID, path string, version uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%s\x00%08x", prefixFile, folderID, path, version))
}

// keyFilePrefix generates the range-scan prefix covering every path and
// version of a folder's files.
func keyFilePrefix(folderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixFile, folderID))
}

// keyFilePathPrefix generates the range-scan prefix covering every
// version of one path.
func keyFilePathPrefix(folderID, path string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s\x00", prefixFile, folderID, path))
}

// keyFileID generates the pointer key for file lookup by ID.
func keyFileID(id string) []byte {
	return []byte(prefixFileID + id)
}

// keyPackGroup generates the primary key for a pack group record.
func keyPackGroup(folderID string, version uint32, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%08x:%s", prefixPackGroup, folderID, version, id))
}

// keyPackGroupPrefix generates the range-scan prefix for a folder version's
// pack groups.
func keyPackGroupPrefix(folderID string, version uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%08x:", prefixPackGroup, folderID, version))
}

// keyPackGroupID generates the pointer key for pack group lookup by ID.
func keyPackGroupID(id string) []byte {
	return []byte(prefixPackGroupID + id)
}

// keySegment generates the primary key for a segment record.
func keySegment(folderID string, version uint32, parentID string, segmentIndex uint32, redundancy uint8) []byte {
	return []byte(fmt.Sprintf("%s%s:%08x:%s:%08x:%02x",
		prefixSegment, folderID, version, parentID, segmentIndex, redundancy))
}

// keySegmentPrefix generates the range-scan prefix for a folder version's
// segments.
func keySegmentPrefix(folderID string, version uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%08x:", prefixSegment, folderID, version))
}

// keySegmentParentPrefix generates the range-scan prefix for the copies
// of one parent within a folder version.
func keySegmentParentPrefix(folderID string, version uint32, parentID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%08x:%s:", prefixSegment, folderID, version, parentID))
}

// keySegmentID generates the pointer key for segment lookup by ID.
func keySegmentID(id string) []byte {
	return []byte(prefixSegmentID + id)
}

// keyMessageID generates the pointer key for segment lookup by Message-ID.
func keyMessageID(messageID string) []byte {
	return []byte(prefixMessageID + messageID)
}

// keyFolderScanPrefix generates the prefix covering every version of a
// folder within one namespace, used by folder deletion.
func keyFolderScanPrefix(namespace, folderID string) []byte {
	return []byte(namespace + folderID + ":")
}

// ============================================================================
// JSON Encoding/Decoding
// ============================================================================

func encodeFileRecord(file *index.File) ([]byte, error) {
	bytes, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file record: %w", err)
	}
	return bytes, nil
}

func decodeFileRecord(bytes []byte) (*index.File, error) {
	var file index.File
	if err := json.Unmarshal(bytes, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	return &file, nil
}

func encodePackGroup(group *index.PackGroup) ([]byte, error) {
	bytes, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pack group: %w", err)
	}
	return bytes, nil
}

func decodePackGroup(bytes []byte) (*index.PackGroup, error) {
	var group index.PackGroup
	if err := json.Unmarshal(bytes, &group); err != nil {
		return nil, fmt.Errorf("failed to decode pack group: %w", err)
	}
	return &group, nil
}

func encodeSegment(segment *index.Segment) ([]byte, error) {
	bytes, err := json.Marshal(segment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment: %w", err)
	}
	return bytes, nil
}

func decodeSegment(bytes []byte) (*index.Segment, error) {
	var segment index.Segment
	if err := json.Unmarshal(bytes, &segment); err != nil {
		return nil, fmt.Errorf("failed to decode segment: %w", err)
	}
	return &segment, nil
}
