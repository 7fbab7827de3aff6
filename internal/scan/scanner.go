// Package scan applies upload policy checks before an asset is
// admitted into the store.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Violation describes an upload policy failure.
type Violation struct {
	Rule   string
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("upload policy violation (%s): %s", v.Rule, v.Detail)
}

// Scanner executes policy checks on uploaded assets.
type Scanner interface {
	ScanUpload(ctx context.Context, filename string, data []byte) error
	Enforced() bool
}

// RuleScanner performs extension blocklist and byte-signature checks.
type RuleScanner struct {
	blockedExt        map[string]struct{}
	signatures        [][]byte
	enforceViolations bool
}

// NewRuleScannerFromEnv builds a scanner from environment variables.
// It can be disabled entirely via UPLOAD_SCAN_DISABLED=true.
func NewRuleScannerFromEnv() Scanner {
	if strings.EqualFold(os.Getenv("UPLOAD_SCAN_DISABLED"), "true") {
		return nil
	}

	s := &RuleScanner{
		blockedExt: map[string]struct{}{
			".exe": {},
			".bat": {},
			".ps1": {},
			".sh":  {},
		},
		enforceViolations: !strings.EqualFold(os.Getenv("UPLOAD_SCAN_MODE"), "monitor"),
	}

	if raw := os.Getenv("UPLOAD_BLOCKED_EXTENSIONS"); raw != "" {
		s.blockedExt = make(map[string]struct{})
		for _, ext := range strings.Split(raw, ",") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.blockedExt[ext] = struct{}{}
		}
	}

	if raw := os.Getenv("UPLOAD_BLOCKED_PATTERNS"); raw != "" {
		for _, pat := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(pat); trimmed != "" {
				s.signatures = append(s.signatures, []byte(trimmed))
			}
		}
	}

	// Keep the scanner allocated even with no explicit rules so the
	// default executable extensions stay blocked.
	return s
}

func (s *RuleScanner) Enforced() bool {
	return s.enforceViolations
}

func (s *RuleScanner) ScanUpload(_ context.Context, filename string, data []byte) error {
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if _, blocked := s.blockedExt[ext]; blocked {
			return &Violation{
				Rule:   "blocked_extension",
				Detail: fmt.Sprintf("extension %q not allowed", ext),
			}
		}
	}
	for _, sig := range s.signatures {
		if len(sig) == 0 {
			continue
		}
		if bytes.Contains(data, sig) {
			return &Violation{
				Rule:   "blocked_pattern",
				Detail: fmt.Sprintf("upload %q matched blocked pattern", filename),
			}
		}
	}
	return nil
}
