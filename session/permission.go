package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/edgeimpulse/emotion-go/present"
)

// Messages shown when a permission request is answered.
const (
	PermissionGranted = "Permission granted to record audio."
	PermissionDenied  = "Permission to record audio denied."
)

// Permission is the host's microphone permission. Requests are
// asynchronous: Request only asks, the answer arrives later.
type Permission interface {
	Granted() bool
	Request(d present.Display)
}

// FilePermission remembers a granted permission as a marker file. Requests
// ask the user on the display, the answer is passed to Answer.
type FilePermission struct {
	Path string

	pending atomic.Bool
}

var _ Permission = (*FilePermission)(nil)

// Granted returns whether the marker file exists.
func (p *FilePermission) Granted() bool {
	_, err := os.Stat(p.Path)
	return err == nil
}

// Request asks the user for permission to record audio, unless a request is
// already pending.
func (p *FilePermission) Request(d present.Display) {
	if p.pending.Swap(true) {
		return
	}
	d.ShowText("Allow recording audio from the microphone? [y/N]")
}

// Pending returns whether a request awaits an answer.
func (p *FilePermission) Pending() bool {
	return p.pending.Load()
}

// Answer completes a pending request. A granted permission is stored for
// later runs.
func (p *FilePermission) Answer(d present.Display, allow bool) error {
	p.pending.Store(false)
	if !allow {
		d.Toast(PermissionDenied)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		d.Toast(PermissionDenied)
		return fmt.Errorf("storing permission: %v", err)
	}
	if err := os.WriteFile(p.Path, []byte("granted\n"), 0o644); err != nil {
		d.Toast(PermissionDenied)
		return fmt.Errorf("storing permission: %v", err)
	}
	d.Toast(PermissionGranted)
	return nil
}

// Revoke removes a stored permission.
func (p *FilePermission) Revoke() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
