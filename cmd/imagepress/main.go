// Package main provides the imagepress CLI application.
//
// imagepress watches folders for newly downloaded images and compresses
// them automatically, keeping a durable history of every compression.
package main

import (
	"flag"
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	// Parse command.
	flag.Parse()

	// Handle version flag.
	if *showVersion {
		fmt.Printf("imagepress %s\n", version)
		return nil
	}

	// Get command.
	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "watch":
		return runWatchCommand(*configPath)
	case "compress":
		return runCompressCommand(*configPath, args[1:])
	case "recompress":
		return runRecompressCommand(*configPath, args[1:])
	case "status":
		return runStatusCommand(*configPath, args[1:])
	case "history":
		return runHistoryCommand(*configPath, args[1:])
	case "originals":
		return runOriginalsCommand(*configPath, args[1:])
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string) error {
	cmd := &watchCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// runCompressCommand runs the compress command.
func runCompressCommand(configPath string, args []string) error {
	// Define compress-specific flags.
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	format := fs.String("format", "table", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("compress requires at least one file")
	}

	cmd := &compressCommand{
		files:      fs.Args(),
		format:     *format,
		compact:    *compact,
		configPath: configPath,
	}
	return cmd.Execute()
}

// runRecompressCommand runs the recompress command.
func runRecompressCommand(configPath string, args []string) error {
	// Define recompress-specific flags.
	fs := flag.NewFlagSet("recompress", flag.ExitOnError)
	quality := fs.Int("quality", 0, "quality of the previous attempt (default: current setting)")
	format := fs.String("format", "table", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("recompress requires exactly one file")
	}

	cmd := &recompressCommand{
		path:       fs.Arg(0),
		quality:    *quality,
		format:     *format,
		compact:    *compact,
		configPath: configPath,
	}
	return cmd.Execute()
}

// runStatusCommand runs the status command.
func runStatusCommand(configPath string, args []string) error {
	// Define status-specific flags.
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	format := fs.String("format", "table", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &statusCommand{
		format:     *format,
		compact:    *compact,
		configPath: configPath,
	}
	return cmd.Execute()
}

// runHistoryCommand runs the history command.
func runHistoryCommand(configPath string, args []string) error {
	// Define history-specific flags.
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	stats := fs.Bool("stats", false, "show summary totals instead of records")
	clear := fs.Bool("clear", false, "clear the compression history")
	format := fs.String("format", "table", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &historyCommand{
		stats:      *stats,
		clear:      *clear,
		format:     *format,
		compact:    *compact,
		configPath: configPath,
	}
	return cmd.Execute()
}

// runOriginalsCommand runs the originals command.
func runOriginalsCommand(configPath string, args []string) error {
	// Define originals-specific flags.
	fs := flag.NewFlagSet("originals", flag.ExitOnError)
	doDelete := fs.Bool("delete", false, "delete original files recorded in history")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*doDelete {
		return fmt.Errorf("originals requires -delete (there is nothing else to do)")
	}

	cmd := &originalsCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// showUsage displays usage information.
func showUsage() error {
	usage := `imagepress - automatic image compression for watched folders

Usage:
  imagepress [flags] <command> [command flags]

Commands:
  watch       Watch the configured folders and compress new images
  compress    Compress specific files and exit
  recompress  Re-run a finished compression at a higher quality
  status      Show tracked jobs from the last run
  history     Show or clear the compression history
  originals   Manage original files recorded in history
  config      Configuration management (quality, folders, show)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Compress Command Flags:
  -format     Output format (table, json, simple)
  -compact    Compact output

Recompress Command Flags:
  -quality    Quality of the previous attempt (default: current setting)
  -format     Output format (table, json, simple)

History Command Flags:
  -stats      Show summary totals instead of records
  -clear      Clear the compression history
  -format     Output format (table, json, simple)

Originals Command Flags:
  -delete     Delete original files recorded in history

Examples:
  # Watch the configured folders
  imagepress watch

  # Compress two files right now
  imagepress compress photo.jpg screenshot.png

  # Re-run a compression one quality step up
  imagepress recompress photo.jpg

  # Show the job table from the last run
  imagepress status

  # Show compression history totals
  imagepress history -stats

  # Delete the original files of finished compressions
  imagepress originals -delete

  # Configuration management
  imagepress config quality get
  imagepress config quality set 85
  imagepress config folders list
  imagepress config folders add ~/Pictures
  imagepress config folders remove ~/Pictures
  imagepress config show

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
