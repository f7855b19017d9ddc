package main

import (
	"os"

	"github.com/smart-resource-management-trier/phorecast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
