package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/igolaizola/aoreader"
	"github.com/igolaizola/aoreader/pkg/discord"
	"github.com/igolaizola/aoreader/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func main() {
	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, os.Kill)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	// Values from a .env file are exposed as environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println(err)
	}

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("aoreader", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "aoreader [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
			newLatestCommand(),
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("AOREADER"),
	}
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	var cfg aoreader.Config
	fs.StringVar(&cfg.DBPath, "db", "aoreader.db", "database path")
	fs.StringVar(&cfg.DiscordToken, "discord-token", "", "discord bot token")
	fs.StringVar(&cfg.DiscordChannel, "discord-channel", "", "discord channel id to read signals")
	fs.StringVar(&cfg.DiscordURL, "discord-url", discord.DefaultURL, "discord api base url")
	fs.StringVar(&cfg.Quote, "quote", "USDT", "quote currency")
	fs.IntVar(&cfg.Limit, "limit", 50, "max messages per request")
	fs.DurationVar(&cfg.Interval, "interval", 5*time.Second, "polling interval")
	fs.DurationVar(&cfg.MaxAge, "max-age", 10*time.Minute, "ignore messages older than this (0 to disable)")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", 0, "max discord requests per second (0 for unlimited)")
	fs.StringVar(&cfg.TelegramToken, "telegram-token", "", "telegram token (optional)")
	fs.Int64Var(&cfg.TelegramChat, "telegram-chat", 0, "telegram chat id for logs and commands")
	fs.StringVar(&cfg.Webhook, "webhook", "", "url to post new signals to (optional)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address to serve prometheus metrics (optional)")
	level := fs.String("log-level", "info", "log level")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "aoreader run [flags]",
		Options:    options(),
		ShortHelp:  "run aoreader bot",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.DBPath == "" {
				return errors.New("missing db path")
			}
			if cfg.DiscordToken == "" {
				return errors.New("missing discord token")
			}
			if cfg.DiscordChannel == "" {
				return errors.New("missing discord channel")
			}
			if cfg.Quote == "" {
				return errors.New("missing quote currency")
			}
			if cfg.TelegramToken != "" && cfg.TelegramChat == 0 {
				return errors.New("missing telegram chat")
			}
			cfg.Debug = *level == "debug"
			bot, err := aoreader.NewBot(cfg, logger.New(*level, os.Stdout))
			if err != nil {
				return err
			}
			return bot.Run(ctx)
		},
	}
}

func newLatestCommand() *ffcli.Command {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	token := fs.String("discord-token", "", "discord bot token")
	channel := fs.String("discord-channel", "", "discord channel id")
	url := fs.String("discord-url", discord.DefaultURL, "discord api base url")

	return &ffcli.Command{
		Name:       "latest",
		ShortUsage: "aoreader latest [flags]",
		Options:    options(),
		ShortHelp:  "print the latest message id of the channel",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := discord.New(logger.Print(logger.New("info", os.Stderr)), discord.Config{
				BaseURL:   *url,
				Token:     *token,
				ChannelID: *channel,
			})
			if err != nil {
				return err
			}
			id, err := client.LatestID(ctx)
			if err != nil {
				return err
			}
			if id == "" {
				fmt.Println("channel is empty")
				return nil
			}
			msg := discord.Message{ID: id}
			if ts, ok := discord.Timestamp(msg); ok {
				fmt.Printf("%s %s\n", id, ts.UTC().Format(time.RFC3339))
				return nil
			}
			fmt.Println(id)
			return nil
		},
	}
}
