// languageols is the diagnostics-only LSP server of SPEC_FULL.md §13,
// speaking LSP-over-stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tangzhangming/nova/internal/lsp"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	showHelp := flag.Bool("help", false, "print usage and exit")
	logPath := flag.String("log", "", "path to receive a trace of every message exchanged")
	flag.Parse()

	if *showVersion {
		fmt.Printf("languageols %s\n", version)
		return
	}
	if *showHelp {
		printUsage()
		return
	}

	server := lsp.NewServer(*logPath)
	if err := server.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "languageols: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("languageols - diagnostics-only language server for languageO")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  languageols [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -version      print version and exit")
	fmt.Println("  -help         print usage and exit")
	fmt.Println("  -log <path>   path to receive a trace of every message exchanged")
	fmt.Println()
	fmt.Println("Speaks LSP over stdio; point an editor's languageO client at this binary.")
}
