// Package mask derives USM stream keys from a numeric seed and masks or unmasks
// video and audio packet payloads with them.
package mask

import "encoding/binary"

// Key sizes.
const (
	VideoKeySize = 0x40
	AudioKeySize = 0x20
)

const (
	videoSkip        = 0x40  // leading video bytes that are never masked
	videoMinSize     = 0x200 // masked region required before a video packet is touched
	videoChainedPart = 0x100 // head of the masked region chained to the plaintext after it
	audioSkip        = 0x140 // leading audio bytes that are never masked
	maskPeriod       = 0x20
)

var audioTail = [4]byte{'U', 'R', 'U', 'C'}

// GenerateKeys derives the video and audio keys from a seed.
func GenerateKeys(seed uint64) (video, audio []byte) {
	var c [8]byte
	binary.LittleEndian.PutUint64(c[:], seed)

	var k [0x20]byte
	k[0x00] = c[0]
	k[0x01] = c[1]
	k[0x02] = c[2]
	k[0x03] = c[3] - 0x34
	k[0x04] = c[4] + 0xF9
	k[0x05] = c[5] ^ 0x13
	k[0x06] = c[6] + 0x61
	k[0x07] = k[0x00] ^ 0xFF
	k[0x08] = k[0x02] + k[0x01]
	k[0x09] = k[0x01] - k[0x07]
	k[0x0A] = k[0x02] ^ 0xFF
	k[0x0B] = k[0x01] ^ 0xFF
	k[0x0C] = k[0x0B] + k[0x09]
	k[0x0D] = k[0x08] - k[0x03]
	k[0x0E] = k[0x0D] ^ 0xFF
	k[0x0F] = k[0x0A] - k[0x0B]
	k[0x10] = k[0x08] - k[0x0F]
	k[0x11] = k[0x10] ^ k[0x07]
	k[0x12] = k[0x0F] ^ 0xFF
	k[0x13] = k[0x03] ^ 0x10
	k[0x14] = k[0x04] - 0x32
	k[0x15] = k[0x05] + 0xED
	k[0x16] = k[0x06] ^ 0xF3
	k[0x17] = k[0x13] - k[0x0F]
	k[0x18] = k[0x15] + k[0x07]
	k[0x19] = 0x21 - k[0x13]
	k[0x1A] = k[0x14] ^ k[0x17]
	k[0x1B] = k[0x16] + k[0x16]
	k[0x1C] = k[0x17] + 0x44
	k[0x1D] = k[0x03] + k[0x04]
	k[0x1E] = k[0x05] - k[0x16]
	k[0x1F] = k[0x1D] ^ k[0x13]

	video = make([]byte, VideoKeySize)
	audio = make([]byte, AudioKeySize)
	for i := range k {
		video[i] = k[i]
		video[0x20+i] = k[i] ^ 0xFF
		if i%2 != 0 {
			audio[i] = audioTail[(i>>1)%4]
		} else {
			audio[i] = k[i] ^ 0xFF
		}
	}
	return
}

// EncryptVideo masks a video packet. The input is not modified.
func EncryptVideo(packet, key []byte) []byte {
	data := append([]byte(nil), packet...)
	size := len(data) - videoSkip
	if size < videoMinSize || len(key) < VideoKeySize {
		return data
	}
	body := data[videoSkip:]

	var rolling [maskPeriod]byte
	copy(rolling[:], key[:maskPeriod])
	for i := 0; i < videoChainedPart; i++ {
		rolling[i%maskPeriod] ^= body[videoChainedPart+i]
		body[i] ^= rolling[i%maskPeriod]
	}

	copy(rolling[:], key[maskPeriod:VideoKeySize])
	for i := videoChainedPart; i < size; i++ {
		plain := body[i]
		body[i] ^= rolling[i%maskPeriod]
		rolling[i%maskPeriod] = plain ^ key[maskPeriod+i%maskPeriod]
	}
	return data
}

// DecryptVideo unmasks a video packet. The input is not modified.
func DecryptVideo(packet, key []byte) []byte {
	data := append([]byte(nil), packet...)
	size := len(data) - videoSkip
	if size < videoMinSize || len(key) < VideoKeySize {
		return data
	}
	body := data[videoSkip:]

	var rolling [maskPeriod]byte
	copy(rolling[:], key[maskPeriod:VideoKeySize])
	for i := videoChainedPart; i < size; i++ {
		body[i] ^= rolling[i%maskPeriod]
		rolling[i%maskPeriod] = body[i] ^ key[maskPeriod+i%maskPeriod]
	}

	copy(rolling[:], key[:maskPeriod])
	for i := 0; i < videoChainedPart; i++ {
		rolling[i%maskPeriod] ^= body[videoChainedPart+i]
		body[i] ^= rolling[i%maskPeriod]
	}
	return data
}

// Audio masks or unmasks an audio packet; the operation is its own inverse.
// The input is not modified.
func Audio(packet, key []byte) []byte {
	data := append([]byte(nil), packet...)
	if len(key) < AudioKeySize {
		return data
	}
	for i := audioSkip; i < len(data); i++ {
		data[i] ^= key[i%maskPeriod]
	}
	return data
}
