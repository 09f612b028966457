package mocks

import (
	"sync"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Drawable is a mock implementation of ports.Drawable.
type Drawable struct {
	ConfigureFunc func(format frame.Format) error

	mu         sync.Mutex
	configured []frame.Format
}

func (m *Drawable) Configure(format frame.Format) error {
	m.mu.Lock()
	m.configured = append(m.configured, format)
	m.mu.Unlock()
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(format)
	}
	return nil
}

// Configured returns every format passed to Configure (for test verification).
func (m *Drawable) Configured() []frame.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame.Format(nil), m.configured...)
}

var _ ports.Drawable = (*Drawable)(nil)
