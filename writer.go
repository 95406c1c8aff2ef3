package delaytail

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const destinationPerm = 0o644

// DurableWriter appends released batches to the destination file.
type DurableWriter struct {
	fs   afero.Fs
	path string
}

// NewDurableWriter returns a writer for path. The file is created on the
// first batch if it does not exist. A nil fs means the OS filesystem.
func NewDurableWriter(fs afero.Fs, path string) *DurableWriter {
	if fs == nil {
		fs = defaultFS
	}
	return &DurableWriter{fs: fs, path: path}
}

// WriteBatch appends entries in order and syncs once for the whole batch.
// It returns the number of bytes written. Nothing is retried: any error
// leaves the destination in an unknown state and must be treated as fatal.
func (w *DurableWriter) WriteBatch(entries []Entry) (written int64, err error) {
	if len(entries) == 0 {
		return 0, nil
	}
	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, destinationPerm)
	if err != nil {
		return 0, errors.Wrapf(err, "could not open destination %q", w.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "could not close %q", w.path)
		}
	}()

	bw := bufio.NewWriter(f)
	for _, e := range entries {
		n, err := bw.Write(e.Line)
		written += int64(n)
		if err != nil {
			return written, errors.Wrapf(err, "could not write to %q", w.path)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, errors.Wrapf(err, "could not write to %q", w.path)
	}
	if err := f.Sync(); err != nil {
		return written, errors.Wrapf(err, "could not sync %q", w.path)
	}
	return written, nil
}

func (w *DurableWriter) Path() string {
	return w.path
}
