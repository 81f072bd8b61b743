package main

import (
	"context"
	"fmt"
	"os"

	engine_v1 "github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema for the engine config YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the schema to this file instead of stdout",
			},
		},
		Action: schemaAction,
	}
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := engine_v1.NewBacktestEngineV1().GetConfigSchema()
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		if err := os.WriteFile(output, []byte(schema), 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}

		return nil
	}

	fmt.Println(schema)

	return nil
}
