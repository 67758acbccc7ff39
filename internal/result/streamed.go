// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"encoding/json"
	"io"
	"os"

	"github.com/kwbridge/kwbridge/errors"
)

// StreamedResultsFilename is a file name to be used with StreamedWriter.
const StreamedResultsFilename = "streamed_results.jsonl"

// StreamedWriter writes a stream of JSON-marshaled Test records to a file.
//
// Each worker process owns exactly one streamed results file. An in-progress
// record is written when a test starts and replaced in place when the test
// finalizes, so a crashed worker still leaves a usable file containing every
// test that completed before the crash.
type StreamedWriter struct {
	f          *os.File
	enc        *json.Encoder
	lastOffset int64 // file offset of the start of the last-written record
}

// NewStreamedWriter creates and returns a new StreamedWriter for writing to
// a file at path. If the file already exists, new records are appended to it.
func NewStreamedWriter(path string) (*StreamedWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	eof, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &StreamedWriter{f: f, enc: json.NewEncoder(f), lastOffset: eof}, nil
}

// Close closes the underlying file.
func (w *StreamedWriter) Close() {
	w.f.Close()
}

// Write writes the JSON-marshaled representation of t to the file.
// If update is true, the previous record that was written by this instance is
// overwritten. Concurrent calls are not supported; tests run serially within
// a worker.
func (w *StreamedWriter) Write(t *Test, update bool) error {
	var err error
	if update {
		// If we're replacing the last record, seek back to the beginning of
		// it and leave the saved offset unmodified.
		if _, err = w.f.Seek(w.lastOffset, io.SeekStart); err != nil {
			return err
		}
		if err = w.f.Truncate(w.lastOffset); err != nil {
			return err
		}
	} else {
		// Otherwise, use Seek to record the current offset before we write.
		if w.lastOffset, err = w.f.Seek(0, io.SeekCurrent); err != nil {
			return err
		}
	}

	return w.enc.Encode(t)
}

// ReadStreamedResults reads a streamed results file written by
// StreamedWriter and returns the test records in the order they were written.
func ReadStreamedResults(path string) ([]*Test, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tests []*Test
	dec := json.NewDecoder(f)
	for {
		var t Test
		if err := dec.Decode(&t); err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "corrupted streamed results file %q", path)
		}
		tests = append(tests, &t)
	}
	return tests, nil
}
