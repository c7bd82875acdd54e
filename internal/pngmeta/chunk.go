// Package pngmeta embeds generation provenance into PNG files as tEXt chunks
// and recovers it later from the file alone.
//
// Chunk layout: 4-byte big-endian length L, 4-byte ASCII type, L data bytes,
// 4-byte big-endian CRC32 over type and data.
package pngmeta

import (
	"bytes"
	"encoding/binary"
)

const (
	signatureLen  = 8
	chunkOverhead = 12
	// KeywordPrefix namespaces every keyword this package writes.
	KeywordPrefix = "PixelLab-"
)

var (
	// Signature is the fixed PNG file header.
	Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

	tagIHDR = [4]byte{'I', 'H', 'D', 'R'}
	tagIEND = [4]byte{'I', 'E', 'N', 'D'}
	tagText = [4]byte{'t', 'E', 'X', 't'}
)

// appendChunk writes one complete chunk to dst.
func appendChunk(dst []byte, tag [4]byte, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, tag[:]...)
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, chunkCRC(tag, data))
}

// textChunkData is keyword ++ 0x00 ++ value.
func textChunkData(keyword, value string) []byte {
	data := make([]byte, 0, len(keyword)+1+len(value))
	data = append(data, keyword...)
	data = append(data, 0)
	return append(data, value...)
}

// findTerminal returns the offset of the IEND chunk's length field, scanning
// backward for the type tag, or -1 when absent.
func findTerminal(img []byte) int {
	for i := len(img) - 8; i >= signatureLen; i-- {
		if bytes.Equal(img[i:i+4], tagIEND[:]) {
			return i - 4
		}
	}
	return -1
}

// HasSignature reports whether img starts with the PNG signature.
func HasSignature(img []byte) bool {
	return len(img) >= signatureLen && bytes.Equal(img[:signatureLen], Signature)
}
