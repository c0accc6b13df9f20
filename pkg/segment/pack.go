package segment

import "github.com/nntpvault/nntpvault/pkg/index"

// packBuffer accumulates small-file plaintext until the next file would
// overflow the segment size. Members keep the order files arrived in,
// which the processor requires to be lexicographic.
type packBuffer struct {
	groupID string
	buf     []byte
	members []index.PackMember
}

func (b *packBuffer) empty() bool {
	return len(b.members) == 0
}

func (b *packBuffer) len() uint32 {
	return uint32(len(b.buf))
}

func (b *packBuffer) append(fileID string, data []byte) {
	b.members = append(b.members, index.PackMember{
		FileID: fileID,
		Offset: uint32(len(b.buf)),
		Length: uint32(len(data)),
	})
	b.buf = append(b.buf, data...)
}

func (b *packBuffer) reset() {
	b.groupID = ""
	b.buf = nil
	b.members = nil
}
