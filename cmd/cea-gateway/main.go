// @title Climate Economy Assistant Gateway API
// @version 1.0
// @description Resume upload gateway with dual-path analysis (document pipeline with agent fallback)
// @host localhost:8080
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/thependalorian/cea-gateway/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [bootstrap] starting cea-gateway...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "cea-gateway failed: %v\n", err)
		os.Exit(1)
	}
}
