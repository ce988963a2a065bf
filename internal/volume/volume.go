// Package volume reports the master volume of the default audio output
// device. The OS pushes changes through a registered callback.
package volume

import (
	"time"

	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
)

const Name = "volume"

// Source is the master volume of the default render endpoint as a scalar
// in [0.0, 1.0].
type Source = provider.Source[float32]

// New returns the volume provider. interval is how often the worker checks
// the link while waiting for change notifications.
func New(src Source, interval time.Duration, out outbound.Sender, signal *link.Signal) provider.Provider {
	return provider.NewNotification(provider.NotificationConfig[float32]{
		Name:     Name,
		Interval: interval,
		Source:   src,
		Encode:   frame.EncodeVolume,
	}, out, signal)
}
