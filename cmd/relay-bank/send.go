package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/relay-bank/internal/mqtt"
	"github.com/sweeney/relay-bank/internal/relay"
)

// ErrAssignment is returned for a malformed channel=ms argument.
var ErrAssignment = errors.New("bad assignment")

// parseAssignments builds a command from "channel=ms" arguments.
// Later assignments to the same channel win.
func parseAssignments(args []string) (relay.Command, error) {
	var cmd relay.Command
	if len(args) == 0 {
		return cmd, fmt.Errorf("%w: need at least one channel=ms", ErrAssignment)
	}
	for _, arg := range args {
		chStr, msStr, ok := strings.Cut(arg, "=")
		if !ok {
			return relay.Command{}, fmt.Errorf("%w: %q: want channel=ms", ErrAssignment, arg)
		}
		ch, err := strconv.Atoi(chStr)
		if err != nil {
			return relay.Command{}, fmt.Errorf("%w: %q: channel: %w", ErrAssignment, arg, err)
		}
		if ch < 0 || ch >= relay.NumChannels {
			return relay.Command{}, fmt.Errorf("%w: %q: %w", ErrAssignment, arg, relay.ErrChannelRange)
		}
		ms, err := parseOnTime(msStr)
		if err != nil {
			return relay.Command{}, fmt.Errorf("%w: %q: %w", ErrAssignment, arg, err)
		}
		cmd.OnTimes[ch] = ms
	}
	return cmd, nil
}

// parseOnTime accepts plain milliseconds ("500") or a Go duration ("1.5s").
func parseOnTime(s string) (relay.Millis, error) {
	if ms, err := strconv.ParseUint(s, 10, 32); err == nil {
		return relay.Millis(ms), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("on-time: %w", err)
	}
	if d < 0 || d.Milliseconds() > int64(^uint32(0)) {
		return 0, fmt.Errorf("on-time %v out of range", d)
	}
	return relay.Millis(d.Milliseconds()), nil
}

func newSendCmd(flags *flagOverrides) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send channel=ms [channel=ms...]",
		Short: "Publish one relay command",
		Example: "  relay-bank send --broker tcp://192.168.1.200:1883 0=500 3=1000\n" +
			"  relay-bank send 7=2m",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseAssignments(args)
			if err != nil {
				return err
			}
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			topic := mqtt.TopicsFor(cfg.TopicPrefix).Command
			if err := mqtt.SendCommand(cfg.Broker, cfg.ClientID+"-send", topic, command, timeout); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s: channels %v\n", topic, command.Armed())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Broker connect and publish timeout")
	return cmd
}
