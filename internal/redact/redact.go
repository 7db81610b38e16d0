// Package redact removes secrets from document text before it is chunked,
// embedded, and stored. Detection uses the Gitleaks ruleset; matches are
// replaced with [REDACTED:rule-id:preview] markers that keep the line
// structure and enough context for embeddings.
package redact

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is a detected secret with its location.
type Finding struct {
	RuleID   string
	RuleDesc string
	Line     int    // 1-based line number
	StartCol int    // start column within the line
	EndCol   int    // end column within the line
	Match    string // the secret value, never persisted
}

// Result holds redacted content together with its audit trail.
type Result struct {
	Content string
	Audit   AuditLog
}

// Redactor scans text with a Gitleaks detector built once at startup.
// Safe for concurrent use.
type Redactor struct {
	detector *detect.Detector
}

// New creates a Redactor with the default Gitleaks ruleset. allowlistPath
// optionally names a TOML allowlist file; a missing file is skipped,
// an invalid one is an error.
func New(allowlistPath string) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}

	if allowlistPath != "" {
		allowlist, err := LoadAllowlist(allowlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading allowlist: %w", err)
		}
		if allowlist != nil {
			applyAllowlist(&detector.Config, allowlist)
		}
	}

	return &Redactor{detector: detector}, nil
}

// Redact scans content and replaces every detected secret with a
// redaction marker. Content without findings is returned unchanged.
func (r *Redactor) Redact(content string) Result {
	start := time.Now()

	gitleaksFindings := r.detector.DetectString(content)

	findings := make([]Finding, 0, len(gitleaksFindings))
	for _, f := range gitleaksFindings {
		findings = append(findings, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			StartCol: f.StartColumn,
			EndCol:   f.EndColumn,
			Match:    f.Secret,
		})
	}

	audit := buildAuditLog(findings, time.Since(start))
	if len(findings) == 0 {
		return Result{Content: content, Audit: audit}
	}

	return Result{
		Content: replaceFindings(content, findings),
		Audit:   audit,
	}
}

// replaceFindings substitutes markers for secrets, walking findings in
// reverse document order so earlier indices stay valid.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line > sorted[j].Line
		}
		return sorted[i].StartCol > sorted[j].StartCol
	})

	lines := strings.Split(content, "\n")

	for _, finding := range sorted {
		if finding.Line < 1 || finding.Line > len(lines) {
			continue
		}

		line := lines[finding.Line-1]
		marker := fmt.Sprintf("[REDACTED:%s:%s]", finding.RuleID, extractPreview(finding.Match, 4))

		if finding.StartCol >= 0 && finding.EndCol <= len(line) {
			lines[finding.Line-1] = line[:finding.StartCol] + marker + line[finding.EndCol:]
		}
	}

	return strings.Join(lines, "\n")
}

func extractPreview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func buildAuditLog(findings []Finding, processingTime time.Duration) AuditLog {
	redactions := make([]Redaction, 0, len(findings))
	ruleCounts := make(map[string]int)

	for _, f := range findings {
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			Column:      f.StartCol,
			OriginalLen: len(f.Match),
			Preview:     extractPreview(f.Match, 4),
		})
		ruleCounts[f.RuleID]++
	}

	return AuditLog{
		Timestamp:  time.Now(),
		Redactions: redactions,
		Summary: Summary{
			TotalSecrets:     len(findings),
			UniqueRules:      len(ruleCounts),
			RuleCounts:       ruleCounts,
			ProcessingTimeMs: processingTime.Milliseconds(),
		},
	}
}
