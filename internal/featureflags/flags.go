// Package featureflags evaluates the FEATURE_FLAGS setting, a comma-separated
// list such as "email_notifications=on,redis_events=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// EmailNotifications gates the SendGrid sink per recipient.
	EmailNotifications = "email_notifications"
	// PodCache gates the Redis cache-aside path for pod reads.
	PodCache = "pod_cache"
)

// flag is one parsed setting. percent is 0..100; on/off map to 100 and 0.
type flag struct {
	raw     string
	percent int
}

// Flags is an immutable set of parsed flags. A nil *Flags has every flag off.
type Flags struct {
	flags map[string]flag
}

// Parse builds Flags from raw. Malformed entries are skipped.
func Parse(raw string) *Flags {
	out := make(map[string]flag)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		pct, ok := parsePercent(value)
		if !ok {
			continue
		}
		out[key] = flag{raw: value, percent: pct}
	}
	return &Flags{flags: out}
}

func parsePercent(value string) (int, bool) {
	switch value {
	case "on", "true", "1":
		return 100, true
	case "off", "false", "0":
		return 0, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return 0, false
	}
	return min(max(pct, 0), 100), true
}

// Enabled reports whether name is on for userID. Partial rollouts bucket
// users deterministically and are never on for userID 0.
func (f *Flags) Enabled(name string, userID uint) bool {
	if f == nil {
		return false
	}
	fl, ok := f.flags[normalize(name)]
	if !ok {
		return false
	}
	switch fl.percent {
	case 0:
		return false
	case 100:
		return true
	}
	if userID == 0 {
		return false
	}
	return bucket(name, userID) < fl.percent
}

// Names returns the configured flag names, sorted.
func (f *Flags) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.flags))
	for name := range f.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns the configured value of name as written, or "".
func (f *Flags) Raw(name string) string {
	if f == nil {
		return ""
	}
	return f.flags[normalize(name)].raw
}

// Snapshot evaluates every configured flag for userID.
func (f *Flags) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range f.Names() {
		out[name] = f.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
