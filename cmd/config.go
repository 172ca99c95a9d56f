package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var configForce bool

const configTemplate = `store:
  driver: sqlite            # sqlite, postgres, dynamo
  database_url: workorders.db
  dynamo:
    region: us-east-1
    table_prefix: workorder_
    # endpoint: http://localhost:8000

anthropic:
  # key: set WORKORDER_ANTHROPIC_KEY instead of committing it here
  vision_model: claude-haiku-4-5-20251001
  summary_model: claude-sonnet-4-5-20250929
  max_tokens: 1024

whisper:
  # key: set WORKORDER_WHISPER_KEY
  base_url: https://api.openai.com/v1
  model: whisper-1

vpic:
  base_url: https://vpic.nhtsa.dot.gov/api

pipeline:
  call_timeout_secs: 30
  retry_attempts: 1

intake:
  max_upload_mb: 32
  max_concurrent: 4

server:
  port: 8080

log:
  level: info
  format: json
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if !configForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		cmd.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
