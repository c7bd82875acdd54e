package pngmeta

// Encode splices one tEXt chunk per retained field immediately before the
// IEND chunk. Bytes before the splice point and the 12 IEND bytes are copied
// verbatim. When no IEND chunk is found, or anything goes wrong, img is
// returned unchanged.
func Encode(img []byte, md Metadata) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			out = img
		}
	}()

	iend := findTerminal(img)
	if iend < 0 {
		return img
	}

	var chunks []byte
	for _, f := range Fields {
		value, err := md.text(f)
		if err != nil {
			return img
		}
		if !keep(value) {
			continue
		}
		chunks = appendChunk(chunks, tagText, textChunkData(KeywordPrefix+string(f), value))
	}

	out = make([]byte, 0, iend+len(chunks)+chunkOverhead)
	out = append(out, img[:iend]...)
	out = append(out, chunks...)
	out = append(out, img[iend:iend+chunkOverhead]...)
	return out
}
