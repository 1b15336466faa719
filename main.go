package main

import "github.com/Layr-Labs/sidecar-events/cmd"

func main() {
	cmd.Execute()
}
