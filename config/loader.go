package config

import (
	"os"
	"path/filepath"

	"github.com/sun-rs/three"
)

// searchPaths enumerates the candidate config file locations in descending
// precedence: a client-hinted user file, the plain user file, a legacy user
// filename, then the same three forms under the project directory. The
// first existing file wins; nothing merges across files.
func searchPaths(projectDir, homeDir, client string) []string {
	var candidates []string
	add := func(dir string) {
		if client != "" {
			candidates = append(candidates, filepath.Join(dir, "three."+client+".json"))
		}
		candidates = append(candidates, filepath.Join(dir, "three.json"))
		candidates = append(candidates, filepath.Join(dir, ".three.json")) // legacy filename
	}
	if homeDir != "" {
		add(filepath.Join(homeDir, ".config", "three"))
	}
	if projectDir != "" {
		add(projectDir)
	}
	return candidates
}

// Load resolves and parses the first config file found under the layered
// search order for projectDir/homeDir/client. Returns KindConfigInvalid if a
// candidate exists but cannot be read or parsed. When no candidate exists it
// returns an empty Document, an empty path, and a nil error.
func Load(projectDir, homeDir, client string) (Document, string, error) {
	for _, path := range searchPaths(projectDir, homeDir, client) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Document{}, "", three.NewError(three.KindConfigInvalid, "reading %s: %v", path, err)
		}
		doc, err := parseDocument(data)
		if err != nil {
			return Document{}, path, err
		}
		return doc, path, nil
	}
	return Document{Backend: map[string]BackendConfig{}, Roles: map[string]RoleConfig{}}, "", nil
}

// ClientFromEnv reads the client hint from THREE_CLIENT, falling back to "".
func ClientFromEnv() string {
	return os.Getenv("THREE_CLIENT")
}

// ConversationIDFromEnv reads THREE_CONVERSATION_ID, used by the session
// coordinator's scope key when the host doesn't pass one explicitly.
func ConversationIDFromEnv() string {
	return os.Getenv("THREE_CONVERSATION_ID")
}
