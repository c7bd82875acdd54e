package pngmeta

import "hash/crc32"

// crcTable is the reflected 0xEDB88320 table used by PNG chunk checksums.
var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum returns the CRC32 of data (initial register 0xFFFFFFFF, final XOR
// 0xFFFFFFFF).
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// chunkCRC is the checksum over the type tag followed by the chunk data.
func chunkCRC(tag [4]byte, data []byte) uint32 {
	crc := crc32.Update(0, crcTable, tag[:])
	return crc32.Update(crc, crcTable, data)
}
