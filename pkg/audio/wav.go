package audio

import "encoding/binary"

const (
	// WAVHeaderSize is the fixed header length written by [EncodeWAV].
	WAVHeaderSize = 44

	// ContentTypeWAV is the MIME type of [EncodeWAV] output.
	ContentTypeWAV = "audio/wav"

	// ExtensionWAV is the file extension used for WAV artifacts.
	ExtensionWAV = ".wav"

	wavChannels      = 1
	wavBitsPerSample = 16
	wavBlockAlign    = wavChannels * wavBitsPerSample / 8
)

// EncodeWAV wraps 16-bit mono PCM in a canonical RIFF/WAVE container: a
// 44-byte header followed by the little-endian samples. It never fails; a
// zero-length input produces a header-only file with a data length of 0.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	dataLen := uint32(len(pcm) * wavBlockAlign)
	buf := make([]byte, WAVHeaderSize+int(dataLen))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], 36+dataLen)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // uncompressed PCM
	le.PutUint16(buf[22:24], wavChannels)
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(sampleRate)*wavBlockAlign)
	le.PutUint16(buf[32:34], wavBlockAlign)
	le.PutUint16(buf[34:36], wavBitsPerSample)
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], dataLen)

	off := WAVHeaderSize
	for _, s := range pcm {
		le.PutUint16(buf[off:], uint16(s))
		off += 2
	}
	return buf
}
