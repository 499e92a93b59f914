package workload

import (
	"testing"

	"github.com/baaaht/mqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	in := Record{Kind: KindData, Producer: 7, Seq: 1 << 20, SentAt: 1700000000123456789}
	buf := make([]byte, 32)

	encoded := in.Encode(buf)
	require.Len(t, encoded, RecordSize)

	out, err := DecodeRecord(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))

	_, err = DecodeRecord(make([]byte, RecordSize))
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))
}
