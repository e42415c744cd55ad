package cli

import (
	"os"
	"os/exec"
	"path/filepath"
)

// AuthStatus is the discovery result for one provider.
type AuthStatus string

const (
	AuthAuthenticated AuthStatus = "authenticated"
	AuthInstalled     AuthStatus = "installed"
	AuthNotFound      AuthStatus = "not_found"
)

// CheckAuth checks a single provider: binary on PATH plus a credentials
// file in its home directory.
func CheckAuth(provider string) AuthStatus {
	var binary string
	var credFiles []string

	home, _ := os.UserHomeDir()
	switch provider {
	case ProviderClaude:
		binary = "claude"
		credFiles = []string{
			filepath.Join(home, ".claude", ".credentials.json"),
			filepath.Join(home, ".claude.json"),
		}
	case ProviderCodex:
		binary = "codex"
		codexHome := os.Getenv("CODEX_HOME")
		if codexHome == "" {
			codexHome = filepath.Join(home, ".codex")
		}
		credFiles = []string{filepath.Join(codexHome, "auth.json")}
	default:
		return AuthNotFound
	}

	if _, err := exec.LookPath(binary); err != nil {
		return AuthNotFound
	}
	for _, f := range credFiles {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			return AuthAuthenticated
		}
	}
	return AuthInstalled
}

// CheckAllAuth checks both providers.
func CheckAllAuth() map[string]AuthStatus {
	return map[string]AuthStatus{
		ProviderClaude: CheckAuth(ProviderClaude),
		ProviderCodex:  CheckAuth(ProviderCodex),
	}
}

// AuthenticatedProviders returns the providers ready for use.
func AuthenticatedProviders() []string {
	out := make([]string, 0, 2)
	for _, name := range []string{ProviderClaude, ProviderCodex} {
		if CheckAuth(name) == AuthAuthenticated {
			out = append(out, name)
		}
	}
	return out
}
