package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
	"github.com/abdul-hamid-achik/hitmatch/packages/http"
)

var (
	recordMethodFlag   string
	recordHeaderFlags  []string
	recordDataFlag     string
	recordNameFlag     string
	recordOutputFlag   string
	recordTimeoutFlag  time.Duration
	recordInsecureFlag bool
)

var recordCmd = &cobra.Command{
	Use:   "record <url>",
	Short: "Write a baseline fixture from a live response",
	Long: `Send one request and write a case whose expectations are the response
received: its status, its headers and its JSON body. Headers that change
on every response, such as Date, Age or Etag, are written as
matchesPattern: directives. Set-Cookie is left out.

When the output file exists the case is added to its suite.

Examples:
  hitmatch record https://reqres.in/api/users?page=2
  hitmatch record https://reqres.in/api/users -X POST -d '{"name":"morpheus"}' -o users.fixture.yaml
  hitmatch record https://api.example.com/me -H "Authorization: Bearer {{token}}" --name me`,
	Args: cobra.ExactArgs(1),
	RunE: recordCommand,
}

func init() {
	recordCmd.Flags().StringVarP(&recordMethodFlag, "method", "X", "GET", "HTTP method")
	recordCmd.Flags().StringArrayVarP(&recordHeaderFlags, "header", "H", nil, "Request header (Name: value), may be repeated")
	recordCmd.Flags().StringVarP(&recordDataFlag, "data", "d", "", "Request body")
	recordCmd.Flags().StringVar(&recordNameFlag, "name", "", "Case name (default: method and path)")
	recordCmd.Flags().StringVarP(&recordOutputFlag, "output", "o", "", "Fixture file to write or extend (default: stdout)")
	recordCmd.Flags().DurationVar(&recordTimeoutFlag, "timeout", 30*time.Second, "Request timeout")
	recordCmd.Flags().BoolVarP(&recordInsecureFlag, "insecure", "k", false, "Disable SSL certificate validation")
}

func recordCommand(cmd *cobra.Command, args []string) error {
	target := args[0]
	if err := http.ValidateURL(target); err != nil {
		return exitWith(ExitUsageError, err)
	}

	headers, err := parseHeaders(recordHeaderFlags)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	logger, err := newLogger(false)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	client := http.NewClient(
		http.WithTimeout(recordTimeoutFlag),
		http.WithValidateSSL(!recordInsecureFlag),
		http.WithLogger(logger),
	)

	req := http.NewRequest(strings.ToUpper(recordMethodFlag), target)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if recordDataFlag != "" {
		req.SetBody(recordDataFlag)
		if _, ok := headers["Content-Type"]; !ok {
			req.SetHeader("Content-Type", http.ContentTypeFor(recordDataFlag))
		}
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		return exitWith(ExitNetworkError, err)
	}

	fixtureReq := fixture.Request{
		Method:  req.Method,
		URL:     target,
		Headers: headers,
	}
	if err := fixtureReq.SetBody(recordDataFlag); err != nil {
		return exitWith(ExitUsageError, err)
	}

	name := recordNameFlag
	if name == "" {
		name = defaultCaseName(req.Method, target)
	}

	c, err := fixture.FromResponse(name, fixtureReq, resp)
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	if recordOutputFlag == "" {
		data, err := yaml.Marshal(&fixture.Suite{Cases: []*fixture.Case{c}})
		if err != nil {
			return exitWith(ExitParseError, err)
		}
		_, _ = cmd.OutOrStdout().Write(data)
		return nil
	}

	suite := &fixture.Suite{}
	if _, err := os.Stat(recordOutputFlag); err == nil {
		loader, err := fixture.New(fixture.Config{Logger: logger})
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		suite, err = loader.Load(recordOutputFlag)
		if err != nil {
			return exitWith(ExitParseError, err)
		}
		for _, existing := range suite.Cases {
			if existing.Name == name {
				return exitWith(ExitUsageError, fmt.Errorf("%s already has a case named %q, use --name", recordOutputFlag, name))
			}
		}
	}
	suite.Cases = append(suite.Cases, c)

	if err := fixture.Save(suite, recordOutputFlag); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to write %s: %w", recordOutputFlag, err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %q (%d %s) in %s\n", name, resp.StatusCode, resp.StatusText, recordOutputFlag)
	return nil
}

// parseHeaders parses curl style "Name: value" flags.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, h := range values {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, use \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func defaultCaseName(method, target string) string {
	path := target
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.Index(path, "/"); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	return method + " " + path
}
