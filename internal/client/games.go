package client

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shotos/fivednine/internal/protocol"
)

// GamesFile is the YAML layout of a games list:
//
//	games:
//	  - name: pong
//	    command: ./pong --fullscreen
//	  - name: maze
//	    command: ./maze
type GamesFile struct {
	Games []protocol.GameConfiguration `yaml:"games"`
}

// LoadGames reads a games list from path.
func LoadGames(path string) ([]protocol.GameConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read games file: %w", err)
	}

	var f GamesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse games file %s: %w", path, err)
	}

	for i, g := range f.Games {
		if g.Name == "" {
			return nil, fmt.Errorf("game %d in %s has no name", i+1, path)
		}
	}
	return f.Games, nil
}
