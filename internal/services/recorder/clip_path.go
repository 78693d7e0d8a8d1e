package recorder

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the timestamp part of clip file names.
const TimestampLayout = "20060102T150405.000"

// ClipPath builds {dir}/{source}/{timestamp}_{label}.{ext}.
// The source directory is omitted when source is empty.
func ClipPath(dir, source string, ts time.Time, label, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", ts.Format(TimestampLayout), SanitizeName(label, "weapon"), strings.TrimPrefix(ext, "."))
	if source != "" {
		dir = filepath.Join(dir, SanitizeName(source, "source"))
	}
	return filepath.Join(dir, name)
}

// SanitizeName makes s safe to use as a single path element. Runs of any
// character other than ASCII letters, digits, '-' and '.' become one '-'.
func SanitizeName(s, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range s {
		ok := r == '-' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return fallback
	}
	return out
}

// ParseClipPath recovers the source, timestamp and label from a path built
// by ClipPath. Timestamps are read in the local zone.
func ParseClipPath(path string) (source string, ts time.Time, label string, err error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	stamp, label, ok := strings.Cut(name, "_")
	if !ok || label == "" {
		return "", time.Time{}, "", fmt.Errorf("invalid clip name %q", base)
	}
	ts, err = time.ParseInLocation(TimestampLayout, stamp, time.Local)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("invalid clip timestamp in %q: %w", base, err)
	}
	return filepath.Base(filepath.Dir(path)), ts, label, nil
}
