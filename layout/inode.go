package layout

import "fmt"

// InodeRecord is the packed, fixed-width on-disk representation of one
// inode: a validity flag, a logical size, five direct block pointers, and
// one indirect block pointer. A zero pointer means "unallocated".
type InodeRecord struct {
	Valid    uint32
	Size     uint32
	Direct   [PointersPerInode]uint32
	Indirect uint32
}

// IsValid reports whether the inode is currently in use.
func (rec InodeRecord) IsValid() bool {
	return rec.Valid != 0
}

// Encode serializes the record into InodeRecordSize bytes.
func (rec InodeRecord) Encode() []byte {
	buf := make([]byte, InodeRecordSize)
	ByteOrder.PutUint32(buf[0:4], rec.Valid)
	ByteOrder.PutUint32(buf[4:8], rec.Size)
	for i, ptr := range rec.Direct {
		offset := 8 + i*4
		ByteOrder.PutUint32(buf[offset:offset+4], ptr)
	}
	indirectOffset := 8 + PointersPerInode*4
	ByteOrder.PutUint32(buf[indirectOffset:indirectOffset+4], rec.Indirect)
	return buf
}

// DecodeInodeRecord parses an InodeRecordSize-byte slice into a record.
func DecodeInodeRecord(data []byte) (InodeRecord, error) {
	if len(data) < InodeRecordSize {
		return InodeRecord{}, fmt.Errorf(
			"inode record too short: got %d bytes, want %d", len(data), InodeRecordSize)
	}

	var rec InodeRecord
	rec.Valid = ByteOrder.Uint32(data[0:4])
	rec.Size = ByteOrder.Uint32(data[4:8])
	for i := range rec.Direct {
		offset := 8 + i*4
		rec.Direct[i] = ByteOrder.Uint32(data[offset : offset+4])
	}
	indirectOffset := 8 + PointersPerInode*4
	rec.Indirect = ByteOrder.Uint32(data[indirectOffset : indirectOffset+4])
	return rec, nil
}

// DecodeIndirectBlock parses a BlockSize-byte block into PointersPerBlock
// uint32 block pointers.
func DecodeIndirectBlock(block []byte) [PointersPerBlock]uint32 {
	var pointers [PointersPerBlock]uint32
	for i := range pointers {
		offset := i * 4
		pointers[i] = ByteOrder.Uint32(block[offset : offset+4])
	}
	return pointers
}

// EncodeIndirectBlock serializes PointersPerBlock uint32 pointers into a
// BlockSize-byte block.
func EncodeIndirectBlock(pointers [PointersPerBlock]uint32) []byte {
	buf := make([]byte, BlockSize)
	for i, ptr := range pointers {
		offset := i * 4
		ByteOrder.PutUint32(buf[offset:offset+4], ptr)
	}
	return buf
}
