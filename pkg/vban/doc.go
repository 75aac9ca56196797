// ABOUTME: VBAN wire protocol package
// ABOUTME: Encodes and decodes VBAN audio packets (28-byte header + int16 PCM)
// Package vban implements the VBAN audio sub-protocol wire format.
//
// A VBAN packet is a single UDP datagram made of a fixed 28-byte header
// followed by at most 1436 bytes of interleaved little-endian samples:
//
//	offset  size  field
//	0       4     magic 'V','B','A','N'
//	4       1     format_SR  (sample-rate index | sub-protocol)
//	5       1     format_nbs (samples per frame - 1)
//	6       1     format_nbc (channels - 1)
//	7       1     format_bit (data type | codec)
//	8       16    stream name
//	24      4     frame counter, little-endian
//	28      ...   payload
//
// Only 16-bit signed PCM is produced and accepted.
//
// Example:
//
//	name := vban.NewStreamName("Stream1")
//	pkt, err := vban.Encode(nil, name, 48000, frame, samples, 2)
//
//	hdr, samples, err := vban.Decode(pkt)
//	if errors.Is(err, vban.ErrInvalidPacket) {
//	    // drop
//	}
package vban
