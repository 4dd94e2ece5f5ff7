// Package config provides configuration loading utilities for render defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RenderDefaults fills the optional fields of an incoming video request.
// Intake applies these before validation so a minimal request still
// produces a complete render specification.
type RenderDefaults struct {
	AvatarID        string `yaml:"avatar_id"`
	VoiceID         string `yaml:"voice_id"`
	VoiceMode       string `yaml:"voice_mode"`
	ScriptText      string `yaml:"script_text"`
	ProductImageURL string `yaml:"product_image_url"`
	AspectRatio     string `yaml:"aspect_ratio"`
	CaptionsEnabled *bool  `yaml:"captions_enabled"`
	CaptionStyle    string `yaml:"caption_style"`
	VisualStyle     string `yaml:"visual_style"`
}

// BuiltinRenderDefaults returns the compiled-in fallback defaults used when
// no defaults file is configured.
func BuiltinRenderDefaults() RenderDefaults {
	enabled := true
	return RenderDefaults{
		AvatarID:        "avatar_default",
		VoiceID:         "voice_default",
		VoiceMode:       "tts",
		ScriptText:      "Check out this product - you will love it.",
		ProductImageURL: "https://assets.example.com/placeholder-product.png",
		AspectRatio:     "9:16",
		CaptionsEnabled: &enabled,
		CaptionStyle:    "bold",
		VisualStyle:     "studio",
	}
}

// LoadRenderDefaults reads render defaults from a YAML file, layering the
// file's values over the built-in fallbacks. An empty path returns the
// built-ins unchanged.
func LoadRenderDefaults(path string) (RenderDefaults, error) {
	base := BuiltinRenderDefaults()
	if path == "" {
		return base, nil
	}
	// #nosec G304 -- Configuration files are expected to be safe
	content, err := os.ReadFile(path)
	if err != nil {
		return RenderDefaults{}, fmt.Errorf("op=config.LoadRenderDefaults: %w", err)
	}
	var file RenderDefaults
	if err := yaml.Unmarshal(content, &file); err != nil {
		return RenderDefaults{}, fmt.Errorf("op=config.LoadRenderDefaults: %w", err)
	}
	if file.AvatarID != "" {
		base.AvatarID = file.AvatarID
	}
	if file.VoiceID != "" {
		base.VoiceID = file.VoiceID
	}
	if file.VoiceMode != "" {
		base.VoiceMode = file.VoiceMode
	}
	if file.ScriptText != "" {
		base.ScriptText = file.ScriptText
	}
	if file.ProductImageURL != "" {
		base.ProductImageURL = file.ProductImageURL
	}
	if file.AspectRatio != "" {
		base.AspectRatio = file.AspectRatio
	}
	if file.CaptionsEnabled != nil {
		base.CaptionsEnabled = file.CaptionsEnabled
	}
	if file.CaptionStyle != "" {
		base.CaptionStyle = file.CaptionStyle
	}
	if file.VisualStyle != "" {
		base.VisualStyle = file.VisualStyle
	}
	return base, nil
}
