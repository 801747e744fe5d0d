// Command relay runs the bot as a standalone service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/relaybot/relay/internal/config"
	"github.com/relaybot/relay/internal/logger"
	"github.com/relaybot/relay/internal/service"
	"github.com/relaybot/relay/pkg/bot"
)

var version = "dev"

func main() {
	args := os.Args[1:]

	configPath := ""
	if len(args) > 0 && (args[0] == "--config" || args[0] == "-config") {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "--config requires a path")
			os.Exit(1)
		}
		configPath = args[1]
		args = args[2:]
	} else if len(args) > 0 && strings.HasPrefix(args[0], "--config=") {
		configPath = strings.TrimPrefix(args[0], "--config=")
		args = args[1:]
	}

	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve", "start":
		err = cmdServe(configPath, args)
	case "version", "-v", "--version":
		cmdVersion()
	case "status":
		err = cmdStatus(configPath)
	case "stop":
		err = cmdStop(configPath)
	case "init-config":
		err = cmdInitConfig(configPath, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`relay - declarative conversational-bot runtime

Usage:
  relay [--config path] <command> [flags]

Commands:
  serve, start   run the bot in the foreground (default)
  status         report whether a bot process is running
  stop           stop a running bot process
  init-config    write a commented default config file
  version        print the build version
  help           show this message
`)
}

func cmdVersion() {
	fmt.Println("relay", version)
}

func getConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("RELAY_CONFIG"); v != "" {
		return v
	}
	return config.DefaultConfigPath()
}

func loadConfig(configPath string, fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(getConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(cfg, "BOT_")
	if fs != nil {
		config.ApplyFlags(cfg, fs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func cmdServe(configPath string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.String("host", "", "override bot.host")
	fs.Int("port", 0, "override bot.port")
	fs.String("data-dir", "", "override bot.data_dir")
	fs.String("bits-dir", "", "override bot.bits_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath, fs)
	if err != nil {
		return err
	}

	if running, pid := service.IsRunning(cfg); running {
		return fmt.Errorf("relay already running (pid %d)", pid)
	}

	arborLog := logger.SetupLogger(cfg)
	slogLogger := logger.NewSlogLogger(arborLog)

	b, err := bot.New(bot.WithConfig(cfg), bot.WithLogger(slogLogger))
	if err != nil {
		return fmt.Errorf("construct bot: %w", err)
	}

	d := service.NewDaemon(cfg, b, slogLogger)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	fmt.Printf("relay listening on %s (pid %d)\n", cfg.Address(), os.Getpid())
	d.Wait(ctx)
	return nil
}

func cmdStatus(configPath string) error {
	cfg, err := loadConfig(configPath, nil)
	if err != nil {
		return err
	}
	running, pid := service.IsRunning(cfg)
	if running {
		fmt.Printf("relay is running (pid %d)\n", pid)
		return nil
	}
	fmt.Println("relay is not running")
	return nil
}

func cmdStop(configPath string) error {
	cfg, err := loadConfig(configPath, nil)
	if err != nil {
		return err
	}
	if err := service.StopRunning(cfg); err != nil {
		return err
	}
	fmt.Println("relay stopped")
	return nil
}

func cmdInitConfig(configPath string, args []string) error {
	path := getConfigPath(configPath)
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteExampleConfig(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Println("wrote", path)
	return nil
}
