package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"groundlink/internal/app"
	"groundlink/internal/packet"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "groundlink",
		Short: "LoRa ground station for probe telemetry and scientific data",
		Long: `LoRa ground station for a team's probe.

Listens for telemetry and scientific packets addressed to the configured team,
validates their CRC-8, keeps the last good record of each and sends telemetry
or scientific requests typed at the console (t, s, b, r, h).

Example usage:
  groundlink --config groundlink.yaml --team 3
  groundlink --radio udp --udp-listen :1700 --metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}

			cfg, err := config.Resolve(cmd.Flags().Changed)
			if err != nil {
				return err
			}

			application, err := app.NewApplication(cfg, app.Streams{
				In:  cmd.InOrStdin(),
				Out: cmd.OutOrStdout(),
				Log: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			return application.Start()
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&config.ConfigFile, app.FlagConfig, "c", "", "YAML configuration file")
	flags.IntVarP(&config.TeamID, app.FlagTeam, "t", 0, "Team ID (0-15)")
	flags.StringVarP(&config.Driver, app.FlagRadio, "r", "sx127x", "Radio driver (sx127x, udp)")
	flags.StringVar(&config.UDPListen, app.FlagUDPListen, ":1700", "UDP bridge listen address")
	flags.StringVar(&config.UDPRemote, app.FlagUDPRemote, "", "UDP bridge remote address")
	flags.StringVarP(&config.LogDir, app.FlagLogDir, "l", "", "Log directory (empty for stderr only)")
	flags.BoolVarP(&config.LogUTC, app.FlagUTC, "u", true, "Use UTC for log rotation")
	flags.BoolVar(&config.Metrics, app.FlagMetrics, false, "Serve Prometheus metrics")
	flags.BoolVar(&config.MQTT, app.FlagMQTT, false, "Publish records to MQTT")
	flags.BoolVarP(&config.Verbose, app.FlagVerbose, "v", false, "Verbose logging")
	flags.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	rootCmd.AddCommand(newEncodeCmd(), newDecodeCmd())
	return rootCmd
}

func newEncodeCmd() *cobra.Command {
	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the wire bytes of a packet",
	}

	var (
		team     int
		tel, sci bool
	)
	commandCmd := &cobra.Command{
		Use:   "command",
		Short: "Encode an uplink command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkTeam(team); err != nil {
				return err
			}
			wire := packet.EncodeCommand(tel, sci, packet.TeamID(team))
			fmt.Fprintln(cmd.OutOrStdout(), packet.HexPrefix(wire[:], len(wire)))
			return nil
		},
	}
	commandCmd.Flags().IntVar(&team, "team", 0, "Team ID (0-15)")
	commandCmd.Flags().BoolVar(&tel, "tel", false, "Request telemetry")
	commandCmd.Flags().BoolVar(&sci, "sci", false, "Request scientific data")

	var (
		telTeam int
		rec     packet.TelemetryRecord
	)
	telemetryCmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Encode a telemetry packet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkTeam(telTeam); err != nil {
				return err
			}
			data := packet.EncodeTelemetry(rec, packet.TeamID(telTeam))
			fmt.Fprintln(cmd.OutOrStdout(), packet.HexPrefix(data, len(data)))
			return nil
		},
	}
	tf := telemetryCmd.Flags()
	tf.IntVar(&telTeam, "team", 0, "Team ID (0-15)")
	tf.Float64Var(&rec.Latitude, "lat", 0, "Latitude (degrees)")
	tf.Float64Var(&rec.Longitude, "lon", 0, "Longitude (degrees)")
	tf.Float32Var(&rec.Altitude, "alt", 0, "Altitude (m)")
	tf.Float32Var(&rec.VerticalVelocity, "vvel", 0, "Vertical velocity (m/s)")
	tf.Uint32Var(&rec.Timestamp, "ts", 0, "Probe timestamp")

	encodeCmd.AddCommand(commandCmd, telemetryCmd)
	return encodeCmd
}

func newDecodeCmd() *cobra.Command {
	var team int

	decodeCmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a captured packet",
		Long: `Decode a captured packet given as hex. Spaces, colons and a 0x prefix are ignored.

Example usage:
  groundlink decode --team 3 "A3 07 A1 20 F8 5E E0 FF 9C 03 E8 00 00 01 00 8E"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkTeam(team); err != nil {
				return err
			}
			data, err := parseHex(strings.Join(args, ""))
			if err != nil {
				return err
			}
			return decode(cmd.OutOrStdout(), data, packet.TeamID(team))
		},
	}
	decodeCmd.Flags().IntVar(&team, "team", 0, "Team ID (0-15)")

	return decodeCmd
}

func checkTeam(team int) error {
	if team < 0 || team > packet.TeamIDMask {
		return fmt.Errorf("team must be between 0 and %d, got %d", packet.TeamIDMask, team)
	}
	return nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)

	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hex: %w", err)
	}
	return data, nil
}

func decode(w io.Writer, data []byte, team packet.TeamID) error {
	kind := packet.Classify(data)

	var (
		v   any
		err error
	)
	switch kind {
	case packet.KindCommand:
		var c packet.Command
		c, err = packet.DecodeCommand(data)
		v = c.String()
	case packet.KindTelemetry:
		v, err = packet.DecodeTelemetry(data, team)
	case packet.KindScientific:
		var pkt *packet.ScientificPacket
		pkt, err = packet.DecodeScientific(data, team)
		if err == nil {
			v = struct {
				Sections string `json:"sections"`
				*packet.ScientificPacket
			}{pkt.Bitmap.String(), pkt}
		}
	default:
		return fmt.Errorf("unknown packet type: %s", packet.HexPrefix(data, 20))
	}
	if err != nil {
		return fmt.Errorf("%s rejected (%s): %w", kind, packet.Reason(err), err)
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", kind, err)
	}
	fmt.Fprintf(w, "%s\n%s\n", kind, out)
	return nil
}
