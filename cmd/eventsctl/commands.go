package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samvad-hq/events-client/pkg/eventsapi"
	"github.com/spf13/cobra"
)

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET a path, falling back to the static dataset when the API fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := c.session.Client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.cfg.Output, raw)
		},
	}
}

func newSendCmd(c *cli) *cobra.Command {
	var data, dataFile string
	cmd := &cobra.Command{
		Use:   "send <method> <path>",
		Short: "Send a JSON body with the given method; writes never fall back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(data, dataFile)
			if err != nil {
				return err
			}
			raw, err := c.session.Client.JSON(cmd.Context(), args[0], args[1], body)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.cfg.Output, raw)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "inline JSON body (defaults to {})")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "read the JSON body from a file")
	return cmd
}

// readBody returns nil when no body was given so the client sends an empty object.
func readBody(data, dataFile string) (any, error) {
	if data != "" && dataFile != "" {
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	}
	if dataFile != "" {
		b, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		data = string(b)
	}
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func newEventsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage events",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List events",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				events, err := c.session.Events.List(cmd.Context())
				if err != nil {
					return err
				}
				return renderValue(cmd.OutOrStdout(), c.cfg.Output, events)
			},
		},
		newEventCreateCmd(c),
		newEventUpdateCmd(c),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an event",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.session.Events.Delete(cmd.Context(), id)
			},
		},
	)
	return cmd
}

func newEventCreateCmd(c *cli) *cobra.Command {
	var in eventsapi.EventInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, err := c.session.Events.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return renderValue(cmd.OutOrStdout(), c.cfg.Output, ev)
		},
	}
	bindEventInput(cmd, &in)
	return cmd
}

func newEventUpdateCmd(c *cli) *cobra.Command {
	var in eventsapi.EventInput
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ev, err := c.session.Events.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return renderValue(cmd.OutOrStdout(), c.cfg.Output, ev)
		},
	}
	bindEventInput(cmd, &in)
	return cmd
}

func bindEventInput(cmd *cobra.Command, in *eventsapi.EventInput) {
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "event title (required)")
	f.StringVar(&in.Description, "description", "", "event description")
	f.StringVar(&in.Location, "location", "", "event location")
	f.StringVar(&in.StartsAt, "starts-at", "", "start time, RFC 3339")
	f.StringVar(&in.EndsAt, "ends-at", "", "end time, RFC 3339")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", raw)
	}
	return id, nil
}
