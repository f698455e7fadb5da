package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadSecrets parses an environment/secrets file (KEY=VALUE lines,
// # comments, optional quoting) into a map. The file is read-only to
// every component except the installer.
func LoadSecrets(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets file: %w", err)
	}
	defer f.Close()

	secrets := make(map[string]string)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, found := strings.Cut(text, "=")
		if !found {
			return nil, fmt.Errorf("secrets file line %d: expected KEY=VALUE", line)
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		secrets[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	return secrets, nil
}

// WriteSecrets renders secrets back to path with keys sorted, mode 0600
func WriteSecrets(path string, secrets map[string]string) error {
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", k, secrets[k])
	}

	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// MaskSecret redacts a credential value for log and report output,
// keeping a two-character prefix so operators can tell values apart.
func MaskSecret(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", 4)
}
