// Package pixel decodes NLP4 image payloads into intensity frames.
//
// # Payload
//
// Each metadata block ends with a 4-byte payload length followed by the
// payload bytes. [ReadPayload] reads both from the block's image address.
//
// # Encodings
//
// Compression code 3 marks a zlib stream of signed deltas (int8 for 8-bit
// frames, little-endian int16 for 16-bit frames). The intensities are the
// running sum of the deltas. For 8-bit frames the running sum wraps modulo
// 256 the way the acquisition software stores it.
//
// Every other compression code stores unsigned samples (uint8 or
// little-endian uint16) directly.
//
// # Canvas
//
// Frames of a file may differ in size. [Decode] places each frame at the
// top-left corner of a canvas sized to the largest frame; the remainder
// stays zero and takes part in the frame extrema.
package pixel
