// pdctl is a command line client for the PulseDeck access API. It resolves memberships and the
// active organization locally against the server and remembers the choice in a file.
//
//	pdctl [-server addr] [-token jwt] [-device id] <command> [args]
//
// Commands: orgs, use <org-id>, whoami, can <capability>, ag <working-group-id>, signout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"pulsedeck/internal/access"
	"pulsedeck/internal/config"
	"pulsedeck/internal/logging"
	membershipservice "pulsedeck/internal/membership/service"
	orgservice "pulsedeck/internal/organization/service"
	"pulsedeck/internal/preference"
	"pulsedeck/internal/security"
	sessionservice "pulsedeck/internal/session/service"
)

const callTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var denied errDenied
		if errors.As(err, &denied) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "pdctl:", err)
		os.Exit(2)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("pdctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", cfg.Server, "access API address")
	token := fs.String("token", cfg.Token, "access token (PULSEDECK_TOKEN)")
	device := fs.String("device", cfg.DeviceID, "device id")
	prefsFile := fs.String("prefs", cfg.PrefsFile, "preference file (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("command required: orgs, use, whoami, can, ag, signout")
	}
	if *token == "" {
		return errors.New("no access token: set PULSEDECK_TOKEN or -token")
	}

	path := *prefsFile
	if path == "" {
		if path, err = preference.DefaultFilePath(); err != nil {
			return err
		}
	}

	var validator sessionservice.TokenValidator = security.NewClaimsReader()
	if cfg.JWTPublicKey != "" {
		tp, err := security.NewTokenProviderFromPEM("", cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, 0)
		if err != nil {
			return err
		}
		validator = tp
	}

	conn, err := access.Dial(*server)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := logging.New(cfg.LogLevel, "text")
	client := access.NewClient(conn, *token, *device)
	prefs := preference.NewFileStore(path)
	manager := sessionservice.NewManager(
		membershipservice.NewResolver(client, log),
		orgservice.NewSelector(client, prefs, log),
		prefs,
		log,
	)
	store := sessionservice.NewStore(validator)
	manager.Attach(store)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := store.SignIn(ctx, *token); err != nil {
		return err
	}

	a := &app{session: manager, remote: client, store: store, out: stdout}
	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}
