package main

import (
	"fmt"
	"os"

	bedrockproxycmder "github.com/papercomputeco/bedrock-chat-proxy/cmd/bedrockproxy"
)

func main() {
	cmd := bedrockproxycmder.NewRootCmd()

	if err := cmd.Execute(); err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
