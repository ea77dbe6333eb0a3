package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitmatch project",
	Long: `Initialize a new hitmatch project in the current directory.

This creates:
  - .hitmatch.yaml                   - Configuration file with environments
  - fixtures/users.fixture.yaml      - Example fixture
  - fixtures/bodies/users-page-2.json - Expected body used by the example

Examples:
  hitmatch init
  hitmatch init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleFixture = `name: users
baseUrl: "{{baseUrl}}"

cases:
  - name: list users
    tags: [smoke]
    request:
      method: GET
      url: /api/users?page=2
    expect:
      status: 200
      statusText: OK
      headers:
        Content-Type: application/json; charset=utf-8
        Age: "matchesPattern:\\d+"
      bodyFile: bodies/users-page-2.json
    capture:
      firstId: data.0.id

  - name: single user
    request:
      url: /api/users/{{list users.firstId}}
    expect:
      status: 200
      body:
        data:
          id: 7
          email: "matchesPattern:.+@reqres\\.in"
          first_name: Michael
`

const exampleBody = `{
  "page": 2,
  "per_page": 6,
  "total": "matchesPattern:\\d+",
  "data": [
    {"id": 7, "email": "michael.lawson@reqres.in", "first_name": "Michael"},
    {"id": 8, "email": "lindsay.ferguson@reqres.in", "first_name": "Lindsay"}
  ]
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	fixtureFile := filepath.Join(cwd, "fixtures", "users.fixture.yaml")
	bodyFile := filepath.Join(cwd, "fixtures", "bodies", "users-page-2.json")

	if !forceInit {
		for _, f := range []string{configFile, fixtureFile, bodyFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "hitmatch/" + version}
	cfg.History = ".hitmatch/history.db"
	cfg.Environments = map[string]map[string]any{
		"dev":     {"baseUrl": "http://localhost:3000"},
		"staging": {"baseUrl": "https://staging.api.example.com"},
		"prod":    {"baseUrl": "https://reqres.in"},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.MkdirAll(filepath.Dir(bodyFile), 0o755); err != nil {
		return exitWith(ExitConfigError, err)
	}
	for path, content := range map[string]string{fixtureFile: exampleFixture, bodyFile: exampleBody} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return exitWith(ExitConfigError, fmt.Errorf("failed to create %s: %w", path, err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitmatch project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitmatch run fixtures/ --env prod' to execute the example.\n")

	return nil
}
