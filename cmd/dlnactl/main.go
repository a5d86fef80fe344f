package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/castbridge/dlnacast/config"
	"github.com/castbridge/dlnacast/events"
	"github.com/castbridge/dlnacast/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dlnactl",
	Short: "Control a DLNA media renderer",
	Long: `dlnactl drives a DLNA/UPnP media renderer over its AVTransport and
RenderingControl services. The renderer is located by its device
description URL, configured via a YAML file or DLNA_* environment
variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	loadCmd.Flags().BoolVar(&loadAndPlay, "play", false, "Start playback after loading")
	rootCmd.AddCommand(playCmd, pauseCmd, stopCmd, nextCmd, previousCmd,
		seekCmd, loadCmd, statusCmd, volumeCmd, muteCmd, watchCmd)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withSession loads config, connects a session, runs fn, and tears the
// session down. Every subcommand goes through here.
func withSession(fn func(ctx context.Context, sess *session.Session) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	sess := session.New(session.Options{
		DescriptionURL:       cfg.DescriptionURL,
		EventBusURL:          cfg.EventBusURL,
		ProxyBase:            cfg.ProxyBase,
		SOAP11:               cfg.SOAP11,
		Timeout:              time.Duration(cfg.TimeoutMs) * time.Millisecond,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Logger:               logger,
	})
	defer sess.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, sess)
}

// transportCmd builds a no-argument playback command.
func transportCmd(use, short string, invoke func(context.Context, *session.Session) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(invoke)
		},
	}
}

var playCmd = transportCmd("play", "Resume or start playback", func(ctx context.Context, sess *session.Session) error {
	avt, err := sess.AVTransport()
	if err != nil {
		return err
	}
	return avt.Play(ctx)
})

var pauseCmd = transportCmd("pause", "Pause playback", func(ctx context.Context, sess *session.Session) error {
	avt, err := sess.AVTransport()
	if err != nil {
		return err
	}
	return avt.Pause(ctx)
})

var stopCmd = transportCmd("stop", "Stop playback", func(ctx context.Context, sess *session.Session) error {
	avt, err := sess.AVTransport()
	if err != nil {
		return err
	}
	return avt.Stop(ctx)
})

var nextCmd = transportCmd("next", "Skip to the next track", func(ctx context.Context, sess *session.Session) error {
	avt, err := sess.AVTransport()
	if err != nil {
		return err
	}
	return avt.Next(ctx)
})

var previousCmd = transportCmd("previous", "Return to the previous track", func(ctx context.Context, sess *session.Session) error {
	avt, err := sess.AVTransport()
	if err != nil {
		return err
	}
	return avt.Previous(ctx)
})

var seekCmd = &cobra.Command{
	Use:   "seek HH:MM:SS",
	Short: "Seek to an absolute position in the current track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			avt, err := sess.AVTransport()
			if err != nil {
				return err
			}
			return avt.Seek(ctx, args[0])
		})
	},
}

var loadAndPlay bool

var loadCmd = &cobra.Command{
	Use:   "load URI",
	Short: "Load a media URI into the renderer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			avt, err := sess.AVTransport()
			if err != nil {
				return err
			}
			if err := avt.SetAVTransportURI(ctx, args[0]); err != nil {
				return err
			}
			if loadAndPlay {
				return avt.Play(ctx)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print transport, position, and media state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			avt, err := sess.AVTransport()
			if err != nil {
				return err
			}
			transport, err := avt.TransportInfo(ctx)
			if err != nil {
				return err
			}
			position, err := avt.PositionInfo(ctx)
			if err != nil {
				return err
			}
			media, err := avt.MediaInfo(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"device":    sess.Device().FriendlyName,
				"transport": transport,
				"position":  position,
				"media":     media,
			})
		})
	},
}

var volumeCmd = &cobra.Command{
	Use:   "volume [LEVEL]",
	Short: "Get or set the master volume (0-100)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			rcs, err := sess.RenderingControl()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				volume, err := rcs.Volume(ctx)
				if err != nil {
					return err
				}
				fmt.Println(volume)
				return nil
			}
			level, err := strconv.Atoi(args[0])
			if err != nil || level < 0 || level > 100 {
				return fmt.Errorf("volume must be an integer 0-100, got %q", args[0])
			}
			return rcs.SetVolume(ctx, level)
		})
	},
}

var muteCmd = &cobra.Command{
	Use:   "mute [on|off]",
	Short: "Get or set master mute",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			rcs, err := sess.RenderingControl()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				muted, err := rcs.Mute(ctx)
				if err != nil {
					return err
				}
				fmt.Println(muted)
				return nil
			}
			switch args[0] {
			case "on":
				return rcs.SetMute(ctx, true)
			case "off":
				return rcs.SetMute(ctx, false)
			default:
				return fmt.Errorf("mute takes on or off, got %q", args[0])
			}
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream playback-state events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, sess *session.Session) error {
			if sess.Events() == nil {
				return fmt.Errorf("watch requires eventBusURL to be configured")
			}
			err := sess.SubscribePlaybackState(func(event events.PlaybackStateEvent) {
				if err := printJSON(event); err != nil {
					slog.Warn("event print failed", "error", err)
				}
			})
			if err != nil {
				return err
			}
			slog.Info("watching playback events", "topic", sess.PlaybackTopic())
			<-ctx.Done()
			return nil
		})
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
