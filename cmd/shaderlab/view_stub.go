//go:build !gl

package main

import "github.com/spf13/cobra"

// registerViewCommand is a no-op without the gl build tag; `view` needs cgo
// and a windowing system.
func registerViewCommand(*cobra.Command) {}
