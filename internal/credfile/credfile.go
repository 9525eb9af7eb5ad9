// Package credfile reads and writes the app-registration credential file
// (tenant id, client id, client secret) stored by "contactsync login". The
// file holds a long-lived secret, so it is written atomically with owner-only
// permissions and refused when readable by anyone else.
package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the credentials directory.
const DirPerms = 0o700

// ErrInsecurePermissions is returned by Load when group or other users can
// access the file.
var ErrInsecurePermissions = errors.New("credfile: file is accessible by other users")

// File is the on-disk format for credential files. Meta carries non-secret
// details cached at login (tenant display name, verification time).
type File struct {
	TenantID     string            `json:"tenant_id"`
	ClientID     string            `json:"client_id"`
	ClientSecret string            `json:"client_secret"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Complete reports whether all three credential fields are present.
func (f *File) Complete() bool {
	return f.TenantID != "" && f.ClientID != "" && f.ClientSecret != ""
}

// Load reads a saved credential file. Returns (nil, nil) if the file does
// not exist.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("credfile: reading %s: %w", path, err)
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %04o, expected %04o",
			ErrInsecurePermissions, path, info.Mode().Perm(), FilePerms)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credfile: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("credfile: decoding %s: %w", path, err)
	}

	if !f.Complete() {
		return nil, fmt.Errorf("credfile: %s is incomplete (run login again)", path)
	}

	return &f, nil
}

// Save writes a credential file to disk atomically (write-to-temp + rename)
// with 0600 permissions. Never logs secret values.
func Save(path string, f *File) error {
	if !f.Complete() {
		return errors.New("credfile: tenant id, client id and client secret are required")
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("credfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("credfile: creating directory %s: %w", dir, mkErr)
	}

	// Temp file in the same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave a partial file.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the credential file. It reports whether a file existed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("credfile: removing %s: %w", path, err)
	}

	return true, nil
}
