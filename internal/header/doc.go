// Package header parses the NLP4 file header.
//
// The header is the entry point for any NLP4 file. It holds the frame count,
// the absolute offset of the directory block, and a free-form list of global
// instrument settings.
//
// # File Signature
//
// NLP4 files start with the 5-byte signature "NLP4\n". [Read] fails with
// [ErrNotNLP4] when the signature does not match; [Probe] reports the same
// check as a boolean.
//
// # Header Layout
//
//   - Bytes 0-4: signature
//   - Bytes 5-17: ASCII decimal total header size, including bytes 0-17
//   - Bytes 18 up to the header size: newline-separated text
//
// The text lines are, in order: a timestamp kept verbatim, the frame count,
// the directory offset, and the fixed frame size. Every following line of the
// form "KEY VALUE" becomes a float attribute; other lines are ignored.
package header
