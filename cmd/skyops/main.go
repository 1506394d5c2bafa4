// Command skyops is the drone-ops demo CLI: it bootstraps the stored
// session (silently refreshing when the access token has expired), logs
// in with env-supplied credentials when no session survives, and renders
// the drone dashboard for the operator's hub.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"

	"github.com/TechEagle-Innovations/skyops-go/account"
	"github.com/TechEagle-Innovations/skyops-go/api"
	"github.com/TechEagle-Innovations/skyops-go/auth"
	"github.com/TechEagle-Innovations/skyops-go/config"
	"github.com/TechEagle-Innovations/skyops-go/fleet"
	"github.com/TechEagle-Innovations/skyops-go/session"
	"github.com/TechEagle-Innovations/skyops-go/tui"
)

// refreshTokenPath is appended to the server URL for the token service.
const refreshTokenPath = "/user/refresh-token"

// isTTY reports whether stderr is a character device (interactive
// terminal). We check stderr because the TUI renders to stderr, allowing
// stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	flagServerURL := flag.String(
		"server-url",
		"",
		"Operations API URL (default: "+config.DefaultServerURL+" or SERVER_URL env)",
	)
	flagCredentialFile := flag.String(
		"credential-file",
		"",
		"Credential storage file (default: "+config.DefaultCredentialFile+" or CREDENTIAL_FILE env)",
	)
	flag.Parse()

	cfg, err := config.Load(config.Flags{
		ServerURL:      *flagServerURL,
		CredentialFile: *flagCredentialFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Insecure() {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(os.Stderr)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted.
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips
		// terminal capability queries. Ctrl+C is handled by
		// signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(cfg, logger, d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(cfg, logger, d); err != nil {
			os.Exit(1)
		}
	}
}

func run(cfg config.Config, logger zerolog.Logger, d tui.Displayer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := api.NewHTTPClient()
	if err != nil {
		d.Fatal(err)
		return err
	}

	store := auth.NewFileStore(cfg.CredentialFile, logger)
	tokens := auth.NewTokenService(
		store,
		strings.TrimRight(cfg.ServerURL, "/")+refreshTokenPath,
		httpClient,
		cfg.Timeout,
		logger,
	)

	client, err := api.New(api.Config{
		BaseURL:    cfg.ServerURL,
		Timeout:    cfg.Timeout,
		HTTPClient: httpClient,
		Tokens:     tokens,
		Logger:     &logger,
	})
	if err != nil {
		d.Fatal(err)
		return err
	}

	controller := session.NewController(tokens, client, logger)
	unsubscribe := controller.Subscribe(func(st session.State) {
		if st.IsAuthenticated {
			d.SignedIn(st.User.UserName, st.User.Email, st.User.Designation)
		} else if !st.IsLoading {
			d.SignedOut()
		}
	})
	defer unsubscribe()

	// Report the stored session before the controller settles it.
	pair := tokens.Tokens()
	wasExpired := false
	if pair.Complete() {
		d.TokensFound()
		if auth.IsExpired(pair.AccessToken) {
			wasExpired = true
			d.TokenExpired()
			d.Refreshing()
		} else {
			d.TokenValid()
		}
	} else {
		d.TokensNotFound()
	}

	controller.Bootstrap(ctx)
	state := controller.State()

	if wasExpired {
		if state.IsAuthenticated {
			d.RefreshOK()
		} else {
			d.RefreshFailed(errors.New("stored session could not be refreshed"))
		}
	}

	// No surviving session: fall back to a credential login.
	if !state.IsAuthenticated {
		if cfg.Email == "" || cfg.Password == "" {
			err := errors.New(
				"no active session and no credentials; set OPS_EMAIL and OPS_PASSWORD (or a .env file)",
			)
			d.Fatal(err)
			return err
		}

		d.LoggingIn(cfg.Email)
		accounts := account.NewService(client)
		resp, err := accounts.Login(ctx, account.Credentials{
			Email:    cfg.Email,
			Password: cfg.Password,
		})
		if err != nil {
			d.LoginFailed(err)
			return err
		}

		if err := controller.Login(ctx, resp); err != nil {
			d.Fatal(err)
			return err
		}
		state = controller.State()
	}

	// Drone dashboard (display data only).
	d.FetchingDrones()
	fleetSvc := fleet.NewService(client)
	drones, err := fleetSvc.DronesAtHub(ctx)
	if err != nil {
		// Not fatal: the session itself is healthy.
		d.FleetFailed(err)
	} else {
		lines := make([]tui.DroneLine, 0, len(drones))
		for _, drone := range drones {
			lines = append(lines, tui.DroneLine{
				Name:    drone.Name,
				Model:   drone.Model,
				Status:  drone.Status,
				Battery: drone.BatteryLevel,
			})
		}
		d.DronesLoaded(lines)
	}

	d.Done(state.User.Email)
	return nil
}
