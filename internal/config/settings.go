package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/cigame/internal/domain/game"
)

// GameSettings is the part of the configuration edited at runtime through
// the admin API.
type GameSettings struct {
	NamesCaseSensitive bool              `koanf:"names_case_sensitive"`
	CustomGames        []game.Definition `koanf:"custom_games"`
}

// GameSettings returns the startup game settings from c.
func (c *Config) GameSettings() GameSettings {
	return GameSettings{NamesCaseSensitive: c.NamesCaseSensitive, CustomGames: c.CustomGames}
}

// LoadGameSettings reads the settings saved at path. A missing file yields
// fallback.
func LoadGameSettings(path string, fallback GameSettings) (GameSettings, error) {
	if path == "" {
		return fallback, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fallback, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return GameSettings{}, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	s := GameSettings{NamesCaseSensitive: true}
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return GameSettings{}, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return s, nil
}

// SaveGameSettings writes s to path as YAML, replacing the file atomically.
func SaveGameSettings(path string, s GameSettings) error {
	if path == "" {
		return nil
	}

	games := make([]map[string]interface{}, 0, len(s.CustomGames))
	for _, d := range s.CustomGames {
		games = append(games, map[string]interface{}{"id": d.ID, "name": d.Name, "jobs": d.Jobs})
	}

	k := koanf.New(".")
	if err := k.Set("names_case_sensitive", s.NamesCaseSensitive); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	if err := k.Set("custom_games", games); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".games-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveSettings, err)
	}
	return nil
}
