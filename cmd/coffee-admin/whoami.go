package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/target/coffee-ui/internal/adapters/backend"
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/service"
)

type whoamiOptions struct {
	Email     string
	Password  string
	ShowToken bool
}

func parseWhoamiFlags(out io.Writer, args []string) (whoamiOptions, error) {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts whoamiOptions
	fs.StringVar(&opts.Email, "email", "", "Employee email (required)")
	fs.StringVar(&opts.Password, "password", "", "Employee password (required)")
	fs.BoolVar(&opts.ShowToken, "show-token", false, "Also print the bearer token")
	if err := fs.Parse(args); err != nil {
		return whoamiOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" || opts.Password == "" {
		return whoamiOptions{}, errors.New("--email and --password are required")
	}
	return opts, nil
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	opts, err := parseWhoamiFlags(cmdCtx.Out, args)
	if err != nil {
		return err
	}

	client, err := backend.NewClient(backend.ClientOptions{
		BaseURL: cmdCtx.Config.Backend.BaseURL,
		Timeout: cmdCtx.Config.Backend.Timeout,
		Logger:  cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, cmdCtx.Config.Backend.Timeout*2)
	defer cancel()

	auth := service.NewAuthService(service.AuthServiceOptions{Logger: cmdCtx.Logger})
	tok, err := auth.Login(ctx, client, domainauth.Credentials{Username: opts.Email, Password: opts.Password})
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	client.SetToken(tok.AccessToken)
	profile, err := auth.Me(ctx, client)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", profile.Name},
		{"Email", profile.Email},
		{"SSN", profile.SSN},
		{"Role", string(profile.Role)},
	}
	if opts.ShowToken {
		rows = append(rows, [2]string{"Token", tok.AccessToken})
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
	}
	return w.Flush()
}
