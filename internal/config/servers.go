package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/thushan/ladle/internal/core/domain"
)

// serversFile mirrors the on-disk shape: {"servers": {"<name>": {...}}}.
// Parsed with encoding/json rather than viper because server names are
// case-significant map keys and viper lowercases them.
type serversFile struct {
	Servers map[string]domain.ServerConfig `json:"servers"`
}

// LoadServers reads the upstream descriptors. A missing file is not an
// error, the gateway runs with no upstreams; a malformed one is fatal.
func LoadServers(path string) ([]domain.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read servers file %s: %w", path, err)
	}

	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse servers file %s: %w", path, err)
	}

	servers := make([]domain.ServerConfig, 0, len(file.Servers))
	for name, sc := range file.Servers {
		sc.Name = name
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		servers = append(servers, sc)
	}

	// deterministic registration order
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Name < servers[j].Name
	})

	return servers, nil
}
