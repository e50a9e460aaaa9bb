package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

const sessionCommandTimeout = 2 * time.Minute

func runSessionsList(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("sessions-list", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, sessionCommandTimeout)
	defer cancel()
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SessionID < entries[j].SessionID })

	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "SESSION\tTTL"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := writef(w, "%s\t%s\n", e.SessionID, formatTTL(e.TTL)); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush session table: %w", err)
	}
	return writef(cmdCtx.Out, "%d session(s)\n", len(entries))
}

func formatTTL(ttl time.Duration) string {
	if ttl < 0 {
		return "no expiry"
	}
	return ttl.Round(time.Second).String()
}

type revokeOptions struct {
	ID string
}

func parseRevokeFlags(out io.Writer, args []string) (revokeOptions, error) {
	fs := flag.NewFlagSet("sessions-revoke", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts revokeOptions
	fs.StringVar(&opts.ID, "id", "", "Session id to revoke (required)")
	if err := fs.Parse(args); err != nil {
		return revokeOptions{}, err
	}
	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		return revokeOptions{}, errors.New("--id is required")
	}
	if _, err := uuid.Parse(opts.ID); err != nil {
		return revokeOptions{}, fmt.Errorf("--id %q is not a session id: %w", opts.ID, err)
	}
	return opts, nil
}

func runSessionsRevoke(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeFlags(cmdCtx.Out, args)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, sessionCommandTimeout)
	defer cancel()
	_, ok, err := store.Get(ctx, opts.ID)
	if err != nil {
		return err
	}
	if !ok {
		return writef(cmdCtx.Out, "No stored token for session %s.\n", opts.ID)
	}
	if err := store.Clear(ctx, opts.ID); err != nil {
		return err
	}
	return writef(cmdCtx.Out, "Revoked session %s. It signs out on its next request.\n", opts.ID)
}

type purgeOptions struct {
	Yes    bool
	DryRun bool
}

func parsePurgeFlags(out io.Writer, args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("sessions-purge", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts purgeOptions
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count sessions without deleting")
	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}
	return opts, nil
}

func runSessionsPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeFlags(cmdCtx.Out, args)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, sessionCommandTimeout)
	defer cancel()

	if opts.DryRun {
		entries, listErr := store.List(ctx)
		if listErr != nil {
			return listErr
		}
		return writef(cmdCtx.Out, "Dry run: %d session(s) would be signed out.\n", len(entries))
	}
	if !opts.Yes {
		if err := confirm(cmdCtx, "About to sign out every user."); err != nil {
			return err
		}
	}

	n, err := store.Purge(ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "Purged %d session(s).\n", n)
}

func confirm(cmdCtx *commandContext, intro string) error {
	if err := writeln(cmdCtx.Out, intro); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := writef(cmdCtx.Out, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
