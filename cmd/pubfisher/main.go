package main

import (
	"context"
	"pubfisher/cmd/pubfisher/commands"
	"pubfisher/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "pubfisher")
	telemetry.InitSlog(false)
	commands.ExecuteContext(context.Background())
}
