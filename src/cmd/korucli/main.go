// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/core"
)

var (
	envFile = flag.String("env", ".env", "Optional dotenv file with KORU_* settings")
	indent  = flag.Bool("indent", false, "Indent the JSON output")
)

func main() {
	flag.Parse()

	configuration, err := core.LoadConfiguration(*envFile)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	log.SetLevel(configuration.Level())

	coreInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, nil, configuration.Instance)
	if err != nil {
		log.WithError(err).Fatal("instance")
	}
	defer coreInstance.Destroy()

	encoder := json.NewEncoder(os.Stdout)
	if *indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(coreInstance.PhysicalDevicesInfo()); err != nil {
		log.WithError(err).Error("encode device info")
	}
}
