package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"promai/internal/logging"
	"promai/internal/manager"
	"promai/internal/probe"
	"promai/pkg/types"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show the host capabilities and the derived runtime profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			log := logging.Console(cmd.ErrOrStderr(), cfg.LogLevel)
			rep := probe.Prober{Host: probeHost, Log: log}.Run(commandContext(cmd))
			applied := probe.Apply(rep.Profile, cfg.Profile)
			sanity := manager.SanityCheck()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Report  probe.Report         `json:"report"`
					Applied types.Profile        `json:"applied_profile"`
					Runtime manager.SanityReport `json:"runtime"`
				}{rep, applied, sanity})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "cpus\t%d\n", rep.CPUs)
			if rep.Fallback {
				fmt.Fprintf(w, "memory\tunknown (fallback profile)\n")
			} else {
				fmt.Fprintf(w, "memory\t%s total, %s available\n", mib(rep.TotalMB), mib(rep.AvailMB))
			}
			if rep.GPU != nil {
				fmt.Fprintf(w, "gpu\t%s (%s VRAM)\n", rep.GPU.Name, mib(rep.GPU.VRAMMB))
			} else {
				fmt.Fprintf(w, "gpu\tnone\n")
			}
			fmt.Fprintf(w, "tier\t%s\n", rep.Tier)
			fmt.Fprintf(w, "threads\t%d\n", applied.Threads)
			fmt.Fprintf(w, "context length\t%d\n", applied.ContextLength)
			fmt.Fprintf(w, "batch size\t%d\n", applied.BatchSize)
			fmt.Fprintf(w, "gpu layers\t%d\n", applied.GPULayers)
			fmt.Fprintf(w, "runtime\t%s (inference enabled: %t)\n", sanity.Runtime, sanity.RealInferEnabled)
			if sanity.Error != "" {
				fmt.Fprintf(w, "runtime note\t%s\n", sanity.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// probeHost is nil for the real machine; tests substitute a fake.
var probeHost probe.Host

func mib(mb uint64) string {
	return humanize.IBytes(mb * 1024 * 1024)
}
