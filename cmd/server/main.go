package main

import (
	"os"

	"iot-traffic-sim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
