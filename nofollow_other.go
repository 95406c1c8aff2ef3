//go:build !unix

package delaytail

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const oNoFollow = 0

// Without O_NOFOLLOW the link check is a separate step, which leaves a window
// between the check and the open.
func checkNotSymlink(fs afero.Fs, path string) error {
	lst, ok := fs.(afero.Lstater)
	if !ok {
		return nil
	}
	fi, _, err := lst.LstatIfPossible(path)
	if err != nil {
		return errors.Wrapf(err, "could not stat source %q", path)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return errors.Wrap(ErrSourceIsSymlink, path)
	}
	return nil
}
