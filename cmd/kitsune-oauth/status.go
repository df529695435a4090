package main

import (
	"context"
	"io"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/app"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the registered application and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			return renderStatus(cmd.Context(), cmd.OutOrStdout(), a, time.Now())
		},
	}
}

func renderStatus(ctx context.Context, out io.Writer, a *app.App, now time.Time) error {
	clientApp, err := a.Apps.Cached(ctx)
	if err != nil {
		return err
	}
	pair, err := a.Tokens.Load(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})

	t.AppendRow(table.Row{"Backend", a.Config.BackendURL})
	t.AppendRow(table.Row{"Storage", a.Config.Storage.Backend})

	if clientApp == nil {
		t.AppendRow(table.Row{"Application", text.FgYellow.Sprint("Not registered")})
	} else {
		t.AppendRow(table.Row{"Client ID", clientApp.ID})
		t.AppendRow(table.Row{"Redirect URI", clientApp.RedirectURI})
	}

	switch {
	case pair == nil:
		t.AppendRow(table.Row{"Session", text.FgYellow.Sprint("Not authenticated")})
	case pair.Expired(now, a.Config.RefreshLeeway):
		t.AppendRow(table.Row{"Session", text.FgYellow.Sprint("Expired (refreshes on next use)")})
		t.AppendRow(table.Row{"Expires", pair.ExpiresAt.Local().Format(time.RFC3339)})
	default:
		t.AppendRow(table.Row{"Session", text.FgGreen.Sprint("Authenticated")})
		t.AppendRow(table.Row{"Expires", pair.ExpiresAt.Local().Format(time.RFC3339)})
		t.AppendRow(table.Row{"Expires In", pair.ExpiresAt.Sub(now).Round(time.Second).String()})
	}

	t.Render()
	return nil
}
