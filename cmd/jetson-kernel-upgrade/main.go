package main

import "github.com/tegra-tools/jetson-kernel-upgrade/cmd/jetson-kernel-upgrade/cmd"

func main() {
	cmd.Execute()
}
