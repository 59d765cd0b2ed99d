package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to userhub! Let's configure your instance.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Listen port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port prompt: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory for the SQLite database",
		Default: cfg.DataDir,
	}
	cfg.DataDir, err = dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir prompt: %w", err)
	}

	// 3. Auth mode.
	authPrompt := promptui.Select{
		Label: "Require JWT bearer tokens on mutating routes?",
		Items: []string{"no (open instance)", "yes"},
	}
	authIdx, _, err := authPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auth prompt: %w", err)
	}
	cfg.AuthRequired = authIdx == 1

	if cfg.AuthRequired {
		secretPrompt := promptui.Prompt{
			Label: "JWT signing secret",
			Mask:  '*',
			Validate: func(s string) error {
				if len(s) < 16 {
					return fmt.Errorf("secret must be at least 16 characters")
				}
				return nil
			},
		}
		cfg.JWTSecret, err = secretPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("secret prompt: %w", err)
		}
	}

	// 4. Central instance mirroring.
	syncPrompt := promptui.Select{
		Label: "Mirror profile writes to a central instance?",
		Items: []string{"no (standalone)", "yes"},
	}
	syncIdx, _, err := syncPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("cloud sync prompt: %w", err)
	}
	cfg.CloudSync.Enabled = syncIdx == 1

	if cfg.CloudSync.Enabled {
		urlPrompt := promptui.Prompt{
			Label: "Central instance base URL",
		}
		cfg.CloudSync.BaseURL, err = urlPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("base URL prompt: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
