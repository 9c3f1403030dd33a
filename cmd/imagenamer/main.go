package main

import (
	"context"
	"os"
)

// Entry point for the application
func main() {
	os.Exit(Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
