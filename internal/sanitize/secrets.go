// secrets.go — configurable regex-based secret scanning, layered after
// the key-name redaction in sanitize.go. Grounded on the teacher's
// internal/redaction package: built-in patterns for cloud credentials,
// bearer/basic auth, JWTs, PATs, private key blocks, card numbers
// (Luhn-validated), SSNs, and generic api_key=/session= assignments.
//
// Key-name redaction (RedactForLog) is mandatory per spec.md §4.5 and
// runs first; SecretScanner is an additional pass over the string
// values that survive it, catching secrets that leaked through a
// param whose key name doesn't mention password/token/secret/key/
// auth/credential (see SPEC_FULL.md §6).
package sanitize

import (
	"encoding/json"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PatternRule is one redaction rule loadable from a JSON config file.
type PatternRule struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement,omitempty"`
}

type patternFile struct {
	Patterns []PatternRule `json:"patterns"`
}

type compiledRule struct {
	name        string
	re          *regexp.Regexp
	replacement string
	validate    func(match string) bool
}

// SecretScanner applies a set of compiled patterns to strings. Safe for
// concurrent use: Go regexps are read-only after compilation, and a
// scanner's pattern list is only ever swapped wholesale under s.mu.
type SecretScanner struct {
	log *zap.Logger

	mu       sync.RWMutex
	patterns []compiledRule

	watcher    *fsnotify.Watcher
	configPath string
}

var builtinPatterns = []struct {
	name     string
	pattern  string
	validate func(string) bool
}{
	{name: "aws-key", pattern: `AKIA[0-9A-Z]{16}`},
	{name: "bearer-token", pattern: `Bearer [A-Za-z0-9\-._~+/]+=*`},
	{name: "basic-auth", pattern: `Basic [A-Za-z0-9+/]+=*`},
	{name: "jwt", pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`},
	{name: "github-pat", pattern: `(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`},
	{name: "private-key", pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`},
	{name: "credit-card", pattern: `\b([0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4})\b`, validate: luhnValidateMatch},
	{name: "ssn", pattern: `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`},
	{name: "api-key", pattern: `(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`},
	{name: "session-cookie", pattern: `(?i)(session|sid|token)\s*=\s*[A-Za-z0-9+/=_-]{16,}`},
}

var (
	defaultScannerOnce sync.Once
	defaultScanner     *SecretScanner
)

// defaultSecretScanner lazily builds the built-ins-only scanner
// RedactForLog layers after key-name redaction. Call sites that need a
// custom pattern config (and optional live reload) should construct
// their own SecretScanner via NewSecretScanner/WatchConfig instead.
func defaultSecretScanner() *SecretScanner {
	defaultScannerOnce.Do(func() {
		defaultScanner = NewSecretScanner("", nil)
	})
	return defaultScanner
}

// NewSecretScanner compiles the built-in patterns plus any custom
// patterns from configPath. A missing or unreadable file is silent —
// the built-ins still apply. Pass an empty log for a no-op logger.
func NewSecretScanner(configPath string, log *zap.Logger) *SecretScanner {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SecretScanner{log: log, configPath: configPath}
	patterns := compileBuiltins()
	if configPath != "" {
		patterns = append(patterns, loadCustomPatterns(configPath, log)...)
	}
	s.patterns = patterns
	return s
}

func compileBuiltins() []compiledRule {
	rules := make([]compiledRule, 0, len(builtinPatterns))
	for _, bp := range builtinPatterns {
		re, err := regexp.Compile(bp.pattern)
		if err != nil {
			continue
		}
		rules = append(rules, compiledRule{
			name:        bp.name,
			re:          re,
			replacement: "[REDACTED:" + bp.name + "]",
			validate:    bp.validate,
		})
	}
	return rules
}

func loadCustomPatterns(path string, log *zap.Logger) []compiledRule {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied config, not request input
	if err != nil {
		return nil
	}
	var cfg patternFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Warn("sanitize: invalid secret-pattern config, ignoring", zap.String("path", path), zap.Error(err))
		return nil
	}
	var out []compiledRule
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			log.Warn("sanitize: skipping invalid pattern", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "[REDACTED:" + p.Name + "]"
		}
		out = append(out, compiledRule{name: p.Name, re: re, replacement: replacement})
	}
	return out
}

// Scan applies every compiled pattern to input and returns the result.
func (s *SecretScanner) Scan(input string) string {
	if input == "" {
		return input
	}
	s.mu.RLock()
	patterns := s.patterns
	s.mu.RUnlock()

	result := input
	for _, p := range patterns {
		if p.validate != nil {
			result = p.re.ReplaceAllStringFunc(result, func(match string) string {
				if p.validate(match) {
					return p.replacement
				}
				return match
			})
		} else {
			result = p.re.ReplaceAllString(result, p.replacement)
		}
	}
	return result
}

// WatchConfig starts an fsnotify watch on the scanner's config file (if
// any) and recompiles custom patterns on write events, so an operator
// can edit the redaction config without restarting the server. Returns
// nil immediately if configPath was empty. The caller should arrange
// for Close to run at shutdown.
func (s *SecretScanner) WatchConfig() error {
	if s.configPath == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.configPath); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rules := append(compileBuiltins(), loadCustomPatterns(s.configPath, s.log)...)
				s.mu.Lock()
				s.patterns = rules
				s.mu.Unlock()
				s.log.Info("sanitize: reloaded secret-pattern config", zap.String("path", s.configPath))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("sanitize: config watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the config watcher, if one was started.
func (s *SecretScanner) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func luhnValid(number string) bool {
	digits := make([]byte, 0, len(number))
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits = append(digits, number[i])
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}

func luhnValidateMatch(match string) bool {
	return luhnValid(match)
}
