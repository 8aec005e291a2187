// mesa-client is a terminal client for a Mesa Gold game table.
//
// Type the number of a tile (or "tap N") to reveal it, "board" to print the table again
// and "quit" to leave.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mjappgame/mesa/internal/client"
	"github.com/mjappgame/mesa/internal/config"
	"github.com/mjappgame/mesa/internal/console"
	"github.com/mjappgame/mesa/internal/game"
	"github.com/mjappgame/mesa/internal/notify"
	"github.com/mjappgame/mesa/internal/profile"
	"github.com/mjappgame/mesa/internal/session"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagConfig  = flag.String("config", "", "Path to a YAML configuration file")
	flagUser    = flag.String("user", "", "Player id (overrides user_id / MESA_USER_ID)")
	flagServer  = flag.String("server", "", "Game server websocket URL (overrides server_url)")
	flagVersion = flag.Bool("version", false, "Print the version and exit")
)

var errQuit = errors.New("quit")

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagVersion {
		fmt.Println("mesa-client", game.Version)
		return
	}
	if err := run(); err != nil {
		klog.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}
	if *flagUser != "" {
		cfg.UserID = *flagUser
	}
	if *flagServer != "" {
		cfg.ServerURL = *flagServer
	}
	if cfg.UserID == "" {
		return errors.New("a player id is required: use -user or MESA_USER_ID")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := profile.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	p, err := profile.LoadOrCreate(ctx, store, cfg.UserID, cfg.Username)
	if err != nil {
		return err
	}

	engine, err := session.Open(ctx, store, p.ID, session.Options{
		Magnitude:      cfg.Magnitude,
		TurnTicks:      cfg.TurnSeconds,
		NoticeWindow:   cfg.NoticeWindow,
		DiagnosticEcho: cfg.DiagnosticEcho,
	})
	if err != nil {
		return err
	}

	notifier := notify.NewService(cfg.Notify, nil)
	go notifyPlayer(notifier.PlayerOnline, p.Username)
	defer notifyPlayer(notifier.PlayerOffline, p.Username)

	engine.AddListener("console", func(v session.View) {
		if err := console.Render(os.Stdout, v); err != nil {
			klog.Errorf("console.Render: %v", err)
		}
	})

	lifecycle := client.NewLifecycle(engine, client.Options{
		URL:         cfg.ServerURL,
		Attempts:    cfg.Reconnect.Attempts,
		Delay:       cfg.Reconnect.Delay,
		DelayMax:    cfg.Reconnect.DelayMax,
		DialTimeout: cfg.Reconnect.Timeout,
		OnStateChange: func(s client.State) {
			klog.Infof("Connection: %s", s)
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return lifecycle.Run(gctx) })
	g.Go(func() error { return readCommands(gctx, os.Stdin, engine) })

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, errQuit), errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, session.ErrSessionTerminated):
		if v := engine.View(); v.Message != nil {
			fmt.Println(v.Message.Text)
		}
		return err
	}
	return err
}

// readCommands reads player commands from r until "quit", the end of the input or ctx is
// done.
func readCommands(ctx context.Context, r io.Reader, engine *session.Engine) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			cmd, err := console.ParseCommand(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			switch cmd.Name {
			case "tap":
				engine.Tap(cmd.Tile)
			case "board":
				if err := console.Render(os.Stdout, engine.View()); err != nil {
					return err
				}
			case "quit":
				return errQuit
			}
		}
	}
}

func notifyPlayer(send func(context.Context, string) (notify.Result, error), player string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := send(ctx, player); err != nil && !errors.Is(err, notify.ErrThrottled) {
		klog.Warningf("notifyPlayer: %v", err)
	}
}
