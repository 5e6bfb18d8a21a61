package main

import (
	"context"
	"os"

	"ahatojira/utils"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}
}
