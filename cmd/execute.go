// Package cmd wires the CLI adapter to the application container.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/viper"

	"github.com/bnema/dbsnap/internal/adapters/in/cli"
	"github.com/bnema/dbsnap/internal/app"
)

// ExecuteCLI runs dbsnap and returns the process exit code.
func ExecuteCLI(version, commit, date string) int {
	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	return cli.Execute(info, newBackend)
}

func newBackend(ctx context.Context, v *viper.Viper, stderr io.Writer) (cli.Backend, func(), error) {
	a, err := app.New(ctx, v, stderr)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}
