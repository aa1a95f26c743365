package signals

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// scriptPattern is one dangerous-command detector for lifecycle scripts.
type scriptPattern struct {
	re     *regexp.Regexp
	reason string
}

var scriptPatterns = compileScriptPatterns([]struct{ expr, reason string }{
	// Remote fetch-and-execute
	{`\bcurl\b`, "Uses curl for network requests"},
	{`\bwget\b`, "Uses wget for downloads"},
	{`\bInvoke-WebRequest\b`, "Uses PowerShell web requests"},
	{`\bInvoke-RestMethod\b`, "Uses PowerShell REST calls"},

	// Shell-out
	{`\bpowershell\b`, "Executes PowerShell"},
	{`\bcmd\.exe\b`, "Executes cmd.exe"},
	{`\bsh\s+-c\b`, "Shell command execution"},
	{`\bbash\s+-c\b`, "Bash command execution"},

	// Permission changes
	{`\bchmod\s+\+x\b`, "Makes files executable"},
	{`\bchmod\s+777\b`, "Sets world-writable permissions"},

	// Dynamic evaluation / encoded payloads
	{`\bbase64\b`, "Base64 encoding or decoding"},
	{`\beval\b`, "Dynamic code evaluation"},
	{`\bnode\s+-e\b`, "Node.js inline code execution"},
	{`\bnode\s+--eval\b`, "Node.js eval flag"},

	// Credential access
	{`\bGITHUB_TOKEN\b`, "Accesses GitHub token"},
	{`\bNPM_TOKEN\b`, "Accesses npm token"},
	{`\bSSH_[A-Z_]+\b`, "Accesses SSH credentials"},
	{`\bAWS_[A-Z_]+\b`, "Accesses AWS credentials"},
	{`\.env\b`, "References .env file"},

	// Destructive filesystem use
	{`\brm\s+-rf\b`, "Recursive force delete"},
	{`\bdd\s+if=`, "Raw disk write tool"},

	// Process injection
	{`\bptrace\b`, "Process tracing or injection"},
	{`\bLD_PRELOAD\b`, "Dynamic library injection"},
})

func compileScriptPatterns(raw []struct{ expr, reason string }) []scriptPattern {
	out := make([]scriptPattern, 0, len(raw))
	for _, p := range raw {
		out = append(out, scriptPattern{regexp.MustCompile("(?i)" + p.expr), p.reason})
	}
	return out
}

// autoRunStages are lifecycle stages the package manager invokes without the
// user asking.
var autoRunStages = map[string]struct{}{
	"install":     {},
	"preinstall":  {},
	"postinstall": {},
}

// Diminishing-returns increments for script pattern hits: the first match
// contributes scriptFirstHit, every later match contributes half of the
// previous increment. Capped at 1.0.
const scriptFirstHit = 0.4

// autoRunFloor is the minimum score once any auto-run stage is declared,
// even with no dangerous pattern match.
const autoRunFloor = 0.4

// ScriptRisk scans lifecycle script content for dangerous command patterns.
// Matches accumulate with diminishing returns; a dangerous pattern inside an
// auto-run stage raises a critical reason without changing the numeric cap.
func ScriptRisk(c model.Candidate, _ *policy.Policy, _ time.Time) model.Signal {
	sig := model.Signal{Name: model.SignalScriptRisk}
	if len(c.Scripts) == 0 {
		return sig
	}

	// Iterate scripts in sorted order so reasons are deterministic.
	names := make([]string, 0, len(c.Scripts))
	for name := range c.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	var autoRunDeclared []string
	for _, name := range names {
		if _, ok := autoRunStages[name]; ok {
			autoRunDeclared = append(autoRunDeclared, name)
		}
	}
	if len(autoRunDeclared) > 0 {
		sig.Reasons = append(sig.Reasons,
			"Has auto-run scripts: "+strings.Join(autoRunDeclared, ", "))
	}

	hits := 0
	critical := false
	increment := scriptFirstHit
	for _, name := range names {
		content := c.Scripts[name]
		var matched []string
		for _, p := range scriptPatterns {
			if p.re.MatchString(content) {
				matched = append(matched, p.reason)
				sig.Value += increment
				increment /= 2
				hits++
			}
		}
		if len(matched) == 0 {
			continue
		}
		if _, auto := autoRunStages[name]; auto {
			critical = true
		}
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("Script %q: %s", name, strings.Join(matched, ", ")))
	}

	if len(autoRunDeclared) > 0 && sig.Value < autoRunFloor {
		sig.Value = autoRunFloor
	}
	if critical {
		sig.Reasons = append(sig.Reasons,
			"CRITICAL: auto-run lifecycle script contains dangerous patterns")
	}

	sig.Value = clamp01(sig.Value)
	return sig
}
