package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that points at the
// configuration file, taking priority over the search directories.
const EnvConfigPath = "DATASETTE_MCP_CONFIG"

const systemConfigDir = "/etc/datasette-mcp"

var configFileNames = []string{"config.yaml", "config.yml", "config.json"}

// Discover locates a configuration file when none was given on the command
// line. Order: the DATASETTE_MCP_CONFIG environment variable, then
// ~/.config/datasette-mcp/, then /etc/datasette-mcp/. Returns an empty
// string when nothing is found.
func Discover() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
		// A bare filename is searched for in the config directories.
		if filepath.Base(path) == path {
			for _, dir := range searchDirs() {
				candidate := filepath.Join(dir, path)
				if fileExists(candidate) {
					return candidate
				}
			}
		}
		return ""
	}

	for _, dir := range searchDirs() {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if fileExists(path) {
				return path
			}
		}
	}
	return ""
}

func searchDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "datasette-mcp"))
	}
	return append(dirs, systemConfigDir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
