package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hatworks/imagepress/pkg/pipeline"
)

// runConfigCommand dispatches the config subcommands.
func runConfigCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("config requires a subcommand: quality, folders, show")
	}

	cmd := &configCommand{configPath: configPath}

	switch fs.Arg(0) {
	case "quality":
		return cmd.quality(fs.Args()[1:])
	case "folders":
		return cmd.folders(fs.Args()[1:])
	case "show":
		return cmd.show()
	default:
		return fmt.Errorf("unknown config subcommand: %s", fs.Arg(0))
	}
}

// configCommand manages user settings and shows effective configuration.
type configCommand struct {
	configPath string
}

// open builds a pipeline for settings access.
func (c *configCommand) open() (*pipeline.Pipeline, error) {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return p, nil
}

// quality handles `config quality get|set`.
func (c *configCommand) quality(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("quality requires a subcommand: get, set")
	}

	p, err := c.open()
	if err != nil {
		return err
	}
	defer p.Close()

	switch args[0] {
	case "get":
		fmt.Printf("%d\n", p.Quality())
		return nil

	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: config quality set <1-100>")
		}
		value, parseErr := strconv.Atoi(args[1])
		if parseErr != nil {
			return fmt.Errorf("invalid quality value: %s", args[1])
		}
		effective := p.SetQuality(value)
		if effective != value {
			fmt.Printf("Quality clamped to %d\n", effective)
		} else {
			fmt.Printf("Quality set to %d\n", effective)
		}
		return nil

	default:
		return fmt.Errorf("unknown quality subcommand: %s", args[0])
	}
}

// folders handles `config folders list|add|remove`.
func (c *configCommand) folders(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("folders requires a subcommand: list, add, remove")
	}

	p, err := c.open()
	if err != nil {
		return err
	}
	defer p.Close()

	switch args[0] {
	case "list":
		folders := p.WatchedFolders()
		if len(folders) == 0 {
			fmt.Println("No folders are being watched")
			return nil
		}
		for _, folder := range folders {
			fmt.Println(folder)
		}
		return nil

	case "add":
		if len(args) != 2 {
			return fmt.Errorf("usage: config folders add <path>")
		}
		if addErr := p.AddFolder(args[1]); addErr != nil {
			return addErr
		}
		fmt.Printf("Watching %s\n", args[1])
		return nil

	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: config folders remove <path>")
		}
		if removeErr := p.RemoveFolder(args[1]); removeErr != nil {
			return removeErr
		}
		fmt.Printf("Stopped watching %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown folders subcommand: %s", args[0])
	}
}

// show prints the effective static configuration as YAML.
func (c *configCommand) show() error {
	cfg, _, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = os.Stdout.Write(data)
	return err
}
