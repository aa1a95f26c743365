package analysis

import "regexp"

// codePattern is one dangerous-code detector applied to unpacked artifact
// sources.
type codePattern struct {
	re     *regexp.Regexp
	reason string
}

var codePatterns = compileCodePatterns([]struct{ expr, reason string }{
	// Dynamic code execution
	{`\bexec\s*\(`, "Uses exec() for code execution"},
	{`\beval\s*\(`, "Uses eval() for code evaluation"},
	{`\bcompile\s*\(`, "Dynamically compiles code"},
	{`\b__import__\s*\(`, "Dynamic import"},

	// Encoded payloads
	{`base64\.b64decode\s*\(`, "Base64 decoding (possible obfuscation)"},
	{`base64\.decodebytes\s*\(`, "Base64 decoding"},
	{`\bFunction\s*\(\s*["']`, "Constructs function from string"},

	// Process execution
	{`subprocess\.(?:call|run|Popen)\s*\([^)]*shell\s*=\s*True`, "Shell command execution"},
	{`os\.system\s*\(`, "OS command execution"},
	{`os\.popen\s*\(`, "OS popen execution"},
	{`child_process`, "Spawns child processes"},

	// Credential harvesting
	{`(?:password|passwd|token|secret|api[_-]?key)\s*=\s*os\.(?:environ|getenv)`, "Reads credentials from environment"},
	{`open\s*\([^)]*["'](?:/etc/|/root/|\.ssh/|\.aws/)`, "Accesses sensitive system directories"},

	// Network exfiltration with secrets in scope
	{`requests\.(?:get|post)\s*\([^)]*(?:token|password|key|secret)`, "Sends credentials over network"},
	{`urllib\.request\.urlopen\s*\([^)]*(?:token|password|key|secret)`, "Sends credentials over network"},

	// Setup-time execution hooks
	{`setup\s*\([^)]*cmdclass\s*=`, "Custom command classes in setup.py"},
	{`console_scripts[^\n]*:(?:[^\n]*)(?:system|exec|eval)`, "Entry point invokes code execution"},
})

func compileCodePatterns(raw []struct{ expr, reason string }) []codePattern {
	out := make([]codePattern, 0, len(raw))
	for _, p := range raw {
		out = append(out, codePattern{regexp.MustCompile("(?is)" + p.expr), p.reason})
	}
	return out
}
