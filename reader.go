package delaytail

import (
	"bufio"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var defaultFS = afero.NewOsFs()

const readBufferSize = 64 * 1024

// Cursor is the position of the next unread byte of the source.
type Cursor struct {
	Path string
	// Offset to next read
	Offset int64
}

// FSReader reads complete lines appended to a single source file.
//
// The source is opened once and never reopened: a rotation that swaps the
// file after OpenReader returns goes unnoticed, and reads keep following the
// original inode.
type FSReader struct {
	file    afero.File
	cursor  Cursor
	partial []byte

	maxLine    int
	discarding bool
	discarded  int64
}

// OpenReader opens path read-only, refusing to follow a symbolic link, and
// positions the cursor at end of file. Content already present is never
// emitted. A nil fs means the OS filesystem.
func OpenReader(fs afero.Fs, path string) (*FSReader, error) {
	if fs == nil {
		fs = defaultFS
	}
	if err := checkNotSymlink(fs, path); err != nil {
		return nil, err
	}
	f, err := fs.OpenFile(path, os.O_RDONLY|oNoFollow, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, errors.Wrap(ErrSourceIsSymlink, path)
		}
		return nil, errors.Wrapf(err, "could not open source %q", path)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "could not seek to end of %q", path)
	}
	return &FSReader{
		file:   f,
		cursor: Cursor{Path: path, Offset: end},
	}, nil
}

// ReadLines calls emit for every complete line between the cursor and the
// current end of file, in file order, and returns how many were emitted.
// Calling it with nothing new to read is a no-op.
func (r *FSReader) ReadLines(emit func(line []byte)) (int, error) {
	if _, err := r.file.Seek(r.cursor.Offset, io.SeekStart); err != nil {
		return 0, errors.Wrapf(err, "could not seek %q to %d", r.cursor.Path, r.cursor.Offset)
	}
	br := bufio.NewReaderSize(r.file, readBufferSize)
	n := 0
	for {
		chunk, err := br.ReadSlice('\n')
		r.cursor.Offset += int64(len(chunk))
		switch {
		case err == nil:
			if line, ok := r.complete(chunk); ok {
				emit(line)
				n++
			}
		case err == bufio.ErrBufferFull:
			r.hold(chunk)
		case err == io.EOF:
			// NOTE: the fragment is already behind the cursor, so it must be
			// kept here until its terminator shows up.
			r.hold(chunk)
			return n, nil
		default:
			return n, errors.Wrapf(err, "could not read from %q", r.cursor.Path)
		}
	}
}

// SetMaxLine bounds the length of a line, terminator included. Longer lines
// are skipped without ever being held whole in memory. Zero means no bound.
func (r *FSReader) SetMaxLine(n int) {
	r.maxLine = n
}

// hold keeps an unterminated piece of the current line.
func (r *FSReader) hold(chunk []byte) {
	if r.discarding {
		return
	}
	if r.maxLine > 0 && len(r.partial)+len(chunk) > r.maxLine {
		r.partial = nil
		r.discarding = true
		return
	}
	r.partial = append(r.partial, chunk...)
}

// complete finishes the current line with chunk, which ends in a newline.
// chunk aliases the read buffer, so the returned line is always a copy.
func (r *FSReader) complete(chunk []byte) ([]byte, bool) {
	if r.discarding {
		r.discarding = false
		r.discarded++
		return nil, false
	}
	if r.maxLine > 0 && len(r.partial)+len(chunk) > r.maxLine {
		r.partial = nil
		r.discarded++
		return nil, false
	}
	line := make([]byte, 0, len(r.partial)+len(chunk))
	line = append(line, r.partial...)
	line = append(line, chunk...)
	r.partial = nil
	return line, true
}

// takeDiscarded returns how many over-long lines were skipped since the last
// call.
func (r *FSReader) takeDiscarded() int64 {
	d := r.discarded
	r.discarded = 0
	return d
}

// Cursor returns the current read position.
func (r *FSReader) Cursor() Cursor {
	return r.cursor
}

// Pending is the size of the unterminated fragment held in memory.
func (r *FSReader) Pending() int {
	return len(r.partial)
}

func (r *FSReader) Close() error {
	return r.file.Close()
}
