package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceKind tells the app which FrameSource implementation to build.
type SourceKind string

const (
	SourceDevice SourceKind = "device" // local capture device, not restartable
	SourceFile   SourceKind = "file"   // decoded video file, restartable
	SourceStream SourceKind = "stream" // network URL read through the capture backend
	SourceUDP    SourceKind = "udp"    // JPEG frames pushed over UDP by a camera
)

// SourceSpec is one entry of the SOURCES variable.
type SourceSpec struct {
	ID     string
	URI    string
	Kind   SourceKind
	Device int
}

// Redacted returns the URI with any password replaced, for logs.
func (s SourceSpec) Redacted() string {
	if s.Kind != SourceStream {
		return s.URI
	}
	u, err := url.Parse(s.URI)
	if err != nil {
		return "<unparseable stream url>"
	}
	return u.Redacted()
}

// Restartable reports whether the source can be rewound to its first frame.
func (s SourceSpec) Restartable() bool {
	return s.Kind == SourceFile
}

// ParseSources parses a comma-separated list of "uri" or "id=uri" entries.
// A bare integer selects a capture device, "udp" the UDP camera listener,
// rtsp/http URLs a network stream, anything else a video file.
func ParseSources(value string) ([]SourceSpec, error) {
	var specs []SourceSpec
	seen := make(map[string]bool)

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, uri := "", entry
		if i := strings.Index(entry, "="); i > 0 && !strings.Contains(entry[:i], "://") {
			id, uri = strings.TrimSpace(entry[:i]), strings.TrimSpace(entry[i+1:])
		}
		if uri == "" {
			return nil, fmt.Errorf("source %q has an empty uri", entry)
		}

		spec := SourceSpec{ID: id, URI: uri}
		switch {
		case isDeviceIndex(uri):
			spec.Kind = SourceDevice
			spec.Device, _ = strconv.Atoi(uri)
			if spec.ID == "" {
				spec.ID = "webcam"
				if spec.Device != 0 {
					spec.ID = "webcam" + uri
				}
			}
		case uri == "udp":
			spec.Kind = SourceUDP
			if spec.ID == "" {
				spec.ID = "udp"
			}
		case strings.Contains(uri, "://"):
			spec.Kind = SourceStream
			if spec.ID == "" {
				spec.ID = streamID(uri)
			}
		default:
			spec.Kind = SourceFile
			if spec.ID == "" {
				spec.ID = filepath.Base(uri)
			}
		}

		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate source id %q", spec.ID)
		}
		seen[spec.ID] = true
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return specs, nil
}

func isDeviceIndex(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0
}

// streamID names a stream by host and path. User info, query and fragment
// can carry credentials and are left out.
func streamID(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "stream"
	}
	return u.Host + strings.TrimRight(u.Path, "/")
}
