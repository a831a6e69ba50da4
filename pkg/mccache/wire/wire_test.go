package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mccache/mccache/pkg/mccache/types"
)

func TestEncodeDecodeOperation_RoundTrip(t *testing.T) {
	msg := types.WireMessage{
		Code:        types.PUT,
		TimestampNs: 123456789,
		Namespace:   "widgets",
		Key:         []byte("sprocket"),
		CRC:         Checksum([]byte("payload")),
		Value:       []byte("payload"),
	}
	encoded, err := EncodeOperation(msg)
	require.NoError(t, err)

	decoded, err := DecodeOperation(encoded)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestEncodeDecodeOperation_AbsentValueStaysAbsent(t *testing.T) {
	msg := types.WireMessage{Code: types.DEL, TimestampNs: 1, Namespace: "ns", Key: []byte("k")}
	encoded, err := EncodeOperation(msg)
	require.NoError(t, err)

	decoded, err := DecodeOperation(encoded)
	require.NoError(t, err)
	require.Nil(t, decoded.Value)
	require.Empty(t, decoded.CRC)
}

func TestChecksum_DeterministicAndSensitiveToContent(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hello"))
	c := Checksum([]byte("world"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, strings.ContainsAny(a, "\n\r"))
}

func TestFragmentParseHeader_RoundTripsSingleFragment(t *testing.T) {
	payload := []byte("small payload")
	fragments, err := Fragment(payload, 64)
	require.NoError(t, err)
	require.Len(t, fragments, 1)

	header, body, err := ParseHeader(fragments[0])
	require.NoError(t, err)
	require.Equal(t, types.MagicByte, header.Magic)
	require.Equal(t, byte(0), header.Index)
	require.Equal(t, byte(1), header.Total)
	require.True(t, bytes.Equal(payload, body))
}

func TestFragment_SplitsAcrossMultipleDatagrams(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 100)
	fragments, err := Fragment(payload, 24) // 20-byte chunks -> 5 fragments
	require.NoError(t, err)
	require.Len(t, fragments, 5)
	for i, f := range fragments {
		header, _, err := ParseHeader(f)
		require.NoError(t, err)
		require.Equal(t, byte(i), header.Index)
		require.Equal(t, byte(5), header.Total)
	}
}

func TestParseHeader_RejectsBadMagicAndVersion(t *testing.T) {
	_, _, err := ParseHeader([]byte{1, 2, 3, 4})
	require.ErrorIs(t, err, types.ErrBadMagic)

	datagram := []byte{types.MagicByte, 99, 0, 1}
	_, _, err = ParseHeader(datagram)
	require.ErrorIs(t, err, types.ErrUnsupportedVersion)
}

func TestReassembler_CompletesOnceAllFragmentsArrive(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 50)
	fragments, err := Fragment(payload, 24)
	require.NoError(t, err)
	require.Greater(t, len(fragments), 1)

	r := NewReassembler()
	var joined []byte
	var complete bool
	for _, f := range fragments {
		header, body, err := ParseHeader(f)
		require.NoError(t, err)
		joined, complete, err = r.Accept("10.0.0.5", header, body)
		require.NoError(t, err)
	}
	require.True(t, complete)
	require.True(t, bytes.Equal(payload, joined))
	require.Equal(t, 0, r.Pending())
}

func TestReassembler_NewTotalFromSameSenderDiscardsStalePartial(t *testing.T) {
	r := NewReassembler()
	header := types.FragmentHeader{Magic: types.MagicByte, Version: 1, Index: 0, Total: 3}
	_, complete, err := r.Accept("10.0.0.5", header, []byte("a"))
	require.NoError(t, err)
	require.False(t, complete)
	require.Equal(t, 1, r.Pending())

	freshHeader := types.FragmentHeader{Magic: types.MagicByte, Version: 1, Index: 0, Total: 1}
	joined, complete, err := r.Accept("10.0.0.5", freshHeader, []byte("z"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, []byte("z"), joined)
}

func TestReassembler_Discard(t *testing.T) {
	r := NewReassembler()
	header := types.FragmentHeader{Magic: types.MagicByte, Version: 1, Index: 0, Total: 2}
	_, _, err := r.Accept("10.0.0.9", header, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, 1, r.Pending())
	r.Discard("10.0.0.9")
	require.Equal(t, 0, r.Pending())
}
