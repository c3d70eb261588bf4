// Package config loads the service configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`

	CatalogPath string `yaml:"catalog_path"`
	TextureBase string `yaml:"texture_base"`

	HistoryCap int `yaml:"history_cap"`

	AI AI `yaml:"ai"`
}

type AI struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	CatalogCap  int     `yaml:"catalog_cap"`
}

func Defaults() Config {
	return Config{
		Addr:        ":8080",
		DataDir:     "./data",
		CatalogPath: "./configs/blocks.json",
		HistoryCap:  100,
		AI: AI{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4096,
			CatalogCap:  110,
		},
	}
}

// Load reads path over the defaults; a missing file returns the defaults
// untouched.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if c.HistoryCap < 1 {
		c.HistoryCap = Defaults().HistoryCap
	}
	if c.AI.CatalogCap < 1 {
		c.AI.CatalogCap = Defaults().AI.CatalogCap
	}
	return c, nil
}
