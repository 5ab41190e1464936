package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownProviders = map[string]struct{}{
	"leonardo": {},
	"flux":     {},
	"localsd":  {},
}

// Validate checks configuration invariants that normalization cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		problems = append(problems, "paths.base_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if _, ok := knownProviders[c.Images.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("images.provider %q is not one of leonardo, flux, localsd", c.Images.Provider))
	}
	if c.Images.Provider == "localsd" && strings.TrimSpace(c.Images.LocalSD.ModelPath) == "" {
		problems = append(problems, "images.localsd.model_path is required when images.provider is localsd")
	}
	if c.Video.ImageOrder != "name" && c.Video.ImageOrder != "mtime" {
		problems = append(problems, fmt.Sprintf("video.image_order %q is not one of name, mtime", c.Video.ImageOrder))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
