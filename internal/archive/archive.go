// Package archive writes the encrypted account archive: a snapshot of
// every account with its secrets resolved, readable with any age client.
package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/logging"
)

// Mode is the permission of archive files.
const Mode os.FileMode = 0o600

// Write encrypts data to recipients and replaces the archive at path.
// When previous is set and an archive already exists, the old archive is
// copied to previous first. The archive at path is never left half
// written.
func Write(path, previous string, recipients []string, data []byte) error {
	if len(recipients) == 0 {
		return errors.New("archive " + path + " needs at least one encryption recipient")
	}
	parsed, err := logging.ParseRecipients(recipients)
	if err != nil {
		return err
	}

	if previous != "" {
		if err := keep(path, previous); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &dserrors.IOError{Op: "create", Path: path, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(Mode); err != nil {
		return &dserrors.IOError{Op: "chmod", Path: tmp.Name(), Err: err}
	}
	enc, err := age.Encrypt(tmp, parsed...)
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		return &dserrors.IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := enc.Close(); err != nil {
		return &dserrors.IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &dserrors.IOError{Op: "close", Path: tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &dserrors.IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}

// keep copies the current archive to previous. A missing archive is not
// an error.
func keep(path, previous string) error {
	in, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &dserrors.IOError{Op: "open", Path: path, Err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(previous, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, Mode)
	if err != nil {
		return &dserrors.IOError{Op: "create", Path: previous, Err: err}
	}
	if err := out.Chmod(Mode); err != nil {
		_ = out.Close()
		return &dserrors.IOError{Op: "chmod", Path: previous, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return &dserrors.IOError{Op: "write", Path: previous, Err: err}
	}
	if err := out.Close(); err != nil {
		return &dserrors.IOError{Op: "close", Path: previous, Err: err}
	}
	return nil
}
