package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

var (
	version = "dev"
)

// Entry point for the application
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorText("Error: "+err.Error()))
		os.Exit(1)
	}
}

// bind ties a flag to a settings key so flags override file and env values.
func bind(flag *pflag.Flag, key string) {
	if flag == nil {
		return
	}
	_ = v.BindPFlag(key, flag)
}
