// Package metadata parses NLP4 per-frame metadata blocks.
//
// Every directory entry with content code 1 points at a block tagged "IMG00".
// The block starts with a text sub-header followed by fixed binary fields and
// the frame's image payload:
//
//	uint32  block size (advisory)
//	[5]byte tag, "IMG00"
//	uint32  sub-header length
//	[]byte  sub-header text, Windows-1252
//	uint32  frame number
//	float64 grab time
//	uint32  width
//	uint32  height
//	uint8   bits per pixel
//	uint8   color component
//	uint8   compression code
//	[48]byte reserved
//	        image payload (see package pixel)
//
// The first two sub-header lines carry the acquisition time and the CLK value
// behind a 5-character prefix. Every further line is a "*KEY VALUE" instrument
// parameter. Which parameters appear varies from frame to frame.
//
// # Field Coverage
//
// [ParseBlock] parses one block into a [Row]. A [Builder] collects rows and
// decides, per dynamic key, whether the key becomes a dense column (present in
// every row) or is kept only as a rendered diagnostic string with a warning.
// A key is never both.
package metadata
