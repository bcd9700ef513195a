// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Instance InstanceConfiguration
	Script   ScriptConfiguration
	Texture  TextureConfiguration

	LogLevel string `env:"KORU_LOG_LEVEL" envDefault:"info"`
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int `env:"KORU_FPS" envDefault:"60"`

	// EventPollDelay is the window event polling period in milliseconds
	EventPollDelay int `env:"KORU_EVENT_POLL_DELAY" envDefault:"50"`
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32   `env:"KORU_SWAPCHAIN_SIZE" envDefault:"3"`
	DeviceExtensions []string `env:"KORU_DEVICE_EXTENSIONS" envDefault:"VK_KHR_swapchain" envSeparator:","`

	// DeviceIndex selects the physical device to use
	DeviceIndex int `env:"KORU_DEVICE" envDefault:"0"`

	ScreenWidth  uint32 `env:"KORU_SCREEN_WIDTH" envDefault:"800"`
	ScreenHeight uint32 `env:"KORU_SCREEN_HEIGHT" envDefault:"600"`
}

// InstanceConfiguration is used to configure the Vulkan instance
type InstanceConfiguration struct {
	// DebugMode enables the validation layers
	DebugMode  bool     `env:"KORU_VALIDATION" envDefault:"true"`
	Extensions []string `env:"KORU_INSTANCE_EXTENSIONS" envSeparator:","`
	Layers     []string `env:"KORU_INSTANCE_LAYERS" envSeparator:","`
}

// ScriptConfiguration tells where object behaviour scripts are found
type ScriptConfiguration struct {
	Directory string `env:"KORU_SCRIPT_DIR" envDefault:"./scripts"`
}

// TextureConfiguration selects the texture shown by the demo
type TextureConfiguration struct {
	// Archive is a kar archive path, a generated texture is used when empty
	Archive string `env:"KORU_TEXTURE_ARCHIVE"`
	Name    string `env:"KORU_TEXTURE"`
	Mipmaps bool   `env:"KORU_MIPMAPS" envDefault:"true"`
}

// LoadConfiguration reads the configuration from the environment,
// after loading any of the given dotenv files that exist.
// Variables already set in the environment take precedence.
func LoadConfiguration(files ...string) (Configuration, error) {
	var existing []string
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Configuration{}, errors.Wrap(err, "godotenv.Load()")
		}
	}

	var cfg Configuration
	if err := env.Parse(&cfg); err != nil {
		return Configuration{}, errors.Wrap(err, "env.Parse()")
	}
	return cfg, nil
}

// Level returns the configured log level, info when it can't be parsed.
func (c Configuration) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
