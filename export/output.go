package export

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrIO is matched by every error writing output files.
var ErrIO = errors.New("output i/o failure")

type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

type pending struct {
	tmp, final string
}

// output collects the files of one object under temporary names until commit.
type output struct {
	dir   string
	files []pending
}

func newOutput(dir string) *output {
	return &output{dir: dir}
}

func (o *output) create(name string) (*os.File, error) {
	final := filepath.Join(o.dir, name)
	tmp := filepath.Join(o.dir, "."+name+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &IOError{Op: "create " + final, Err: err}
	}
	o.files = append(o.files, pending{tmp: tmp, final: final})
	return f, nil
}

// commit renames every file into place. A failed rename removes what was already renamed.
func (o *output) commit() ([]string, error) {
	var done []string
	for i, p := range o.files {
		if err := os.Rename(p.tmp, p.final); err != nil {
			for _, d := range done {
				os.Remove(d)
			}
			o.files = o.files[i:]
			o.rollback()
			return nil, &IOError{Op: "rename " + p.final, Err: err}
		}
		done = append(done, p.final)
	}
	o.files = nil
	return done, nil
}

// rollback removes every temporary file.
func (o *output) rollback() {
	for _, p := range o.files {
		if err := os.Remove(p.tmp); err != nil && !os.IsNotExist(err) {
			zap.S().Warnw("could not remove temporary file", "path", p.tmp, "error", err)
		}
	}
	o.files = nil
}
