// Diagnostic tool for analyzing NLP4 files
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
	"github.com/robert-malhotra/go-nlp4/internal/directory"
	"github.com/robert-malhotra/go-nlp4/internal/header"
	"github.com/robert-malhotra/go-nlp4/internal/metadata"
	"github.com/robert-malhotra/go-nlp4/internal/pixel"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/diagnose/main.go <file.nlp>")
		os.Exit(1)
	}

	filename := os.Args[1]
	fmt.Printf("=== Analyzing %s ===\n\n", filename)

	src, err := binary.OpenFile(filename)
	if err != nil {
		fmt.Printf("ERROR: Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	h, err := header.Read(src)
	if err != nil {
		fmt.Printf("ERROR: Failed to read header: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File size: %d\n", src.Size())
	fmt.Printf("Header size: %d\n", h.Size)
	fmt.Printf("Timestamp: %q\n", h.Timestamp)
	fmt.Printf("Frames (header): %d\n", h.FrameCount)
	fmt.Printf("Directory offset: %d\n", h.DirectoryOffset)
	fmt.Printf("Fixed frame size: %d\n", h.FixedFrameSize)
	fmt.Printf("Attributes: %d\n", h.Attributes.Len())
	fmt.Println()

	r := binary.NewReader(src)
	dir, err := directory.Read(r, h.DirectoryOffset)
	if err != nil {
		fmt.Printf("ERROR: Failed to read directory: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Directory %q: block size %d, %d entries (%d metadata)\n\n",
		dir.Tag, dir.BlockSize, len(dir.Entries), dir.MetadataCount())

	for i, e := range dir.Entries {
		walkEntry(r, src.Size(), i, e)
	}
}

func walkEntry(r *binary.Reader, size int64, index int, e directory.Entry) {
	fmt.Printf("Entry %d: frame %d, content %d, offset %d\n", index, e.FrameNumber, e.ContentCode, e.BlockOffset)

	if e.BlockOffset >= size {
		fmt.Printf("  [OFFSET PAST END OF FILE]\n")
		return
	}

	blk := r.At(e.BlockOffset)
	blockSize, err := blk.ReadUint32()
	if err != nil {
		fmt.Printf("  ERROR reading block size: %v\n", err)
		return
	}
	rawTag, err := blk.ReadBytes(5)
	if err != nil {
		fmt.Printf("  ERROR reading block tag: %v\n", err)
		return
	}
	fmt.Printf("  Block %q: size %d\n", strings.ToValidUTF8(string(rawTag), string(utf8.RuneError)), blockSize)

	if !e.IsMetadata() {
		return
	}

	row, err := metadata.ParseBlock(r, index, e)
	if errors.Is(err, metadata.ErrUnexpectedTag) {
		fmt.Printf("  [SKIPPED - not a metadata block]\n")
		return
	}
	if err != nil {
		fmt.Printf("  ERROR parsing metadata: %v\n", err)
		return
	}

	fmt.Printf("  Time: %s  CLK: %g  Grab: %g\n", row.Time.Format(metadata.TimeLayout), row.CLK, row.GrabTime)
	fmt.Printf("  Image: %dx%d, %d bpp, color %d, compression %d, address %d\n",
		row.Width, row.Height, row.BitsPerPixel, row.ColorComponent, row.Compression, row.ImageAddress)
	for _, f := range row.Fields {
		fmt.Printf("    %s = %q\n", f.Key, f.Value)
	}

	payload, err := pixel.ReadPayload(r, row.ImageAddress)
	if err != nil {
		fmt.Printf("  ERROR reading payload: %v\n", err)
		return
	}
	spec := pixel.Spec{BitsPerPixel: row.BitsPerPixel, Compression: row.Compression, Height: row.Height, Width: row.Width}
	f, err := pixel.Decode(payload, spec, row.Height, row.Width)
	if err != nil {
		fmt.Printf("  Payload: %d bytes, ERROR decoding: %v\n", len(payload), err)
		return
	}
	fmt.Printf("  Payload: %d bytes, min %g, max %g\n", len(payload), f.Min, f.Max)
}
