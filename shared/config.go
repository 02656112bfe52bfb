package shared

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// InputSettings holds the local device intents applied once a session
// connects.
type InputSettings struct {
	Camera bool `yaml:"camera" json:"camera"`
	Mic    bool `yaml:"mic" json:"mic"`
}

type OutputSettings struct {
	Audio bool `yaml:"audio" json:"audio"`
	Video bool `yaml:"video" json:"video"`
}

// UserSettings is owned by whoever loads the configuration. The session
// core only reads Inputs and ThemeColor.
type UserSettings struct {
	Editable        bool           `yaml:"editable" json:"editable"`
	ThemeColor      string         `yaml:"theme_color" json:"theme_color"`
	Chat            bool           `yaml:"chat" json:"chat"`
	Inputs          InputSettings  `yaml:"inputs" json:"inputs"`
	Outputs         OutputSettings `yaml:"outputs" json:"outputs"`
	RoomName        string         `yaml:"room_name" json:"room_name"`
	ParticipantID   string         `yaml:"participant_id" json:"participant_id"`
	ParticipantName string         `yaml:"participant_name" json:"participant_name"`
	AgentName       string         `yaml:"agent_name" json:"agent_name"`
	Metadata        string         `yaml:"metadata" json:"metadata"`
}

type AppConfig struct {
	Title       string       `yaml:"title" json:"title"`
	Description string       `yaml:"description" json:"description"`
	GithubLink  string       `yaml:"github_link" json:"github_link"`
	ShowQR      bool         `yaml:"show_qr" json:"show_qr"`
	AutoConnect bool         `yaml:"auto_connect" json:"auto_connect"`
	Settings    UserSettings `yaml:"settings" json:"settings"`
}

func DefaultConfig() AppConfig {
	return AppConfig{
		Title:       "Agent Playground",
		Description: "A playground for interacting with a voice agent",
		Settings: UserSettings{
			Editable:   true,
			ThemeColor: "cyan",
			Chat:       true,
			Inputs:     InputSettings{Camera: false, Mic: true},
			Outputs:    OutputSettings{Audio: true, Video: false},
		},
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig. An empty path
// returns the defaults.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := ParseConfig(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ParseConfig(data []byte, cfg *AppConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}
