// Package nlp4 reads NLP4 measurement files written by LEEM instruments.
//
// An NLP4 file holds a text header of global instrument settings, a
// directory of blocks, one metadata block per frame, and the frame images.
// Opening a file always parses the header, directory and per-frame
// metadata. Image decoding follows a [LoadPolicy]; frames left out can be
// decoded later with [Measurement.DecodeFrame].
//
// # Basic Usage
//
//	m, err := nlp4.Open("20190223_185646.nlp", nlp4.WithLoadPolicy(nlp4.LoadSample))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	for i, t := range m.Times() {
//	    if f, ok := m.Frame(i); ok {
//	        fmt.Println(t, f.Min, f.Max)
//	    }
//	}
//
// # Metadata
//
// Every parsed frame contributes one row. Fixed fields (time, CLK, frame
// number, geometry and encoding) are always present. Dynamic "*KEY VALUE"
// parameters become columns only when every row carries them; the others
// are kept as rendered attributes and reported through [Measurement.Warnings].
//
// # Errors
//
// Structural corruption aborts the load with a [*LoadError] naming the
// phase and file offset. The wrapped cause can be matched with errors.Is
// against the package sentinels such as [ErrUnrecognizedFormat] and
// [ErrDecompression].
package nlp4
