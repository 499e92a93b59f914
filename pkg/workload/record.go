package workload

import (
	"encoding/binary"
	"fmt"

	"github.com/baaaht/mqueue/pkg/types"
)

// RecordSize is the encoded size of a Record
const RecordSize = 16

// Kind distinguishes data records from the shutdown marker
type Kind uint8

const (
	KindData Kind = iota + 1
	KindPoison
)

// Record is the fixed-size structured message exchanged by the workload
type Record struct {
	Kind     Kind
	Producer uint16
	Seq      uint32
	SentAt   int64 // unix nanoseconds on the registry clock
}

// Encode writes r into buf, which must hold RecordSize bytes
func (r Record) Encode(buf []byte) []byte {
	buf = buf[:RecordSize]
	buf[0] = byte(r.Kind)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], r.Producer)
	binary.BigEndian.PutUint32(buf[4:8], r.Seq)
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.SentAt))
	return buf
}

// DecodeRecord parses a record received from the queue
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, types.NewError(types.ErrCodeInvalid,
			fmt.Sprintf("record must be %d bytes, got %d", RecordSize, len(b)))
	}
	r := Record{
		Kind:     Kind(b[0]),
		Producer: binary.BigEndian.Uint16(b[2:4]),
		Seq:      binary.BigEndian.Uint32(b[4:8]),
		SentAt:   int64(binary.BigEndian.Uint64(b[8:16])),
	}
	if r.Kind != KindData && r.Kind != KindPoison {
		return Record{}, types.NewError(types.ErrCodeInvalid, fmt.Sprintf("unknown record kind %d", b[0]))
	}
	return r, nil
}
