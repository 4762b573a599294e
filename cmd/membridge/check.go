package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/membridge/bridge"
)

func newCheckCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [CONFIG...]",
		Short: "Check that configurations build an engine.",
		Long: `Check that configurations build an engine. Each file is ` +
			`parsed, completed with its presets, validated, and handed to ` +
			`its engine. Without arguments the global configuration is ` +
			`checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{g.config}
			}

			failed := 0

			for _, path := range args {
				path = resolvePath(path)

				line, err := check(path)
				if err != nil {
					failed++
					logrus.WithField("config", path).WithError(err).
						Error("check failed")

					continue
				}

				fmt.Fprintln(cmd.OutOrStdout(), line)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d configurations failed",
					failed, len(args))
			}

			return nil
		},
	}
}

func check(path string) (string, error) {
	b := bridge.New("Bridge")

	if err := b.Initialize(sourceOf(path)); err != nil {
		return "", err
	}

	tck, err := b.TCK()
	if err != nil {
		return "", err
	}

	if _, err := b.Finalize(); err != nil {
		return "", err
	}

	if err := b.Destroy(); err != nil {
		return "", err
	}

	name := path
	if name == "" {
		name = "(built-in)"
	}

	return fmt.Sprintf("%s: ok, engine %s, tCK %.3f ns",
		name, b.Config().Engine, tck), nil
}
