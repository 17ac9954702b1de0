package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/funvibe/loopviz/internal/debugger"
	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/explain"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/funvibe/loopviz/internal/server"
	"github.com/funvibe/loopviz/internal/session"
	"github.com/funvibe/loopviz/internal/wire"
	"github.com/spf13/cobra"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			completed := map[string]bool{}
			if store := a.openProgress(); store != nil {
				defer closeProgress(store)
				entries, err := store.Completed(cmd.Context())
				if err != nil {
					return err
				}
				for _, e := range entries {
					completed[e.ScenarioID] = true
				}
			}
			a.printer(cmd.OutOrStdout()).ScenarioList(a.catalog.List(), completed)
			return nil
		},
	}
}

func (a *app) showCommand() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "show <id|file>",
		Short: "Show a scenario's source and instruction count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.catalog.Resolve(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				data, err := scenario.Marshal(s)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			fmt.Fprintf(out, "%s (%s)\n", s.Name, s.ID)
			if s.Description != "" {
				fmt.Fprintf(out, "%s\n", s.Description)
			}
			if s.Source != "" {
				fmt.Fprintf(out, "source: %s\n", s.Source)
			}
			fmt.Fprintf(out, "%d steps\n\n", len(wire.Record(s, a.engineOptions()...).Frames))
			a.printer(out).Code(s, 0)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the scenario as a YAML document")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	var (
		interval time.Duration
		instant  bool
	)
	cmd := &cobra.Command{
		Use:   "run <id|file>",
		Short: "Play a scenario and print its execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.catalog.Resolve(args[0])
			if err != nil {
				return err
			}
			store := a.openProgress()
			defer closeProgress(store)

			ctx := cmd.Context()
			ctrl := session.NewController(s, a.sessionOptions(ctx, store)...)
			out := cmd.OutOrStdout()
			p := a.printer(out)

			last := ctrl.State()
			ctrl.Subscribe(func(st engine.State) {
				p.NewEntries(last, st)
				last = st
			})

			if instant {
				for ctrl.HasNext() {
					ctrl.Step()
				}
			} else {
				if interval <= 0 {
					interval = a.cfg.PlayInterval()
				}
				if err := ctrl.Play(ctx, interval); err != nil {
					return err
				}
				ctrl.Wait()
			}

			final := ctrl.State()
			fmt.Fprintln(out)
			p.Header(final)
			if final.HasNext {
				return fmt.Errorf("interrupted after %d of %d steps", final.StepsExecuted, final.TotalSteps)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between steps (default from configuration)")
	cmd.Flags().BoolVar(&instant, "instant", false, "run every step without delay")
	return cmd
}

func (a *app) debugCommand() *cobra.Command {
	var breakpoints []int
	cmd := &cobra.Command{
		Use:   "debug <id|file>",
		Short: "Step through a scenario interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.catalog.Resolve(args[0])
			if err != nil {
				return err
			}
			store := a.openProgress()
			defer closeProgress(store)

			ctrl := session.NewController(s, a.sessionOptions(cmd.Context(), store)...)
			d := debugger.New(ctrl)
			for _, line := range breakpoints {
				d.SetBreakpoint(line)
			}
			out := cmd.OutOrStdout()
			return debugger.NewCLI(d, cmd.InOrStdin(), out, a.printer(out)).Run()
		},
	}
	cmd.Flags().IntSliceVarP(&breakpoints, "break", "b", nil, "set a breakpoint at a source line (repeatable)")
	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <id|file>",
		Short: "Record every snapshot of a run as JSON, YAML or CBOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := wire.ParseFormat(format)
			if err != nil {
				return err
			}
			if f.Binary() && output == "" {
				return fmt.Errorf("%s output needs -o <file>", f)
			}
			s, err := a.catalog.Resolve(args[0])
			if err != nil {
				return err
			}

			data, err := wire.Encode(f, wire.Record(s, a.engineOptions()...))
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			a.log.Infof("wrote %s (%d bytes)", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(wire.JSON), "json, yaml or cbor")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	var (
		addr     string
		protoset string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if protoset != "" {
				data, err := server.DescriptorSet()
				if err != nil {
					return err
				}
				if err := os.WriteFile(protoset, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", protoset)
				return nil
			}
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			store := a.openProgress()
			defer closeProgress(store)

			ctx := cmd.Context()
			srv, err := server.New(a.catalog, session.NewStore(a.sessionOptions(ctx, store)...))
			if err != nil {
				return err
			}
			defer srv.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", server.ServiceName, addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from configuration)")
	cmd.Flags().StringVar(&protoset, "write-protoset", "", "write the service descriptor set (for grpcurl -protoset) and exit")
	return cmd
}

func (a *app) remoteCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "remote <id>",
		Short: "Run a scenario on a loopviz server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			client, err := server.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			snap, err := client.Open(ctx, args[0])
			if err != nil {
				return err
			}
			p := a.printer(cmd.OutOrStdout())
			for snap.State.HasNext {
				next, err := client.Step(ctx, snap.SessionID)
				if err != nil {
					return err
				}
				p.NewEntries(snap.State, next.State)
				snap = next
			}
			p.Header(snap.State)
			_, err = client.CloseSession(ctx, snap.SessionID)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from configuration)")
	return cmd
}

func (a *app) progressCommand() *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show or clear the scenarios completed so far",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := a.openProgress()
			if store == nil {
				return errors.New("progress database unavailable")
			}
			defer closeProgress(store)

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if clearAll {
				if err := store.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Progress cleared.")
				return nil
			}

			entries, err := store.Completed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d scenarios completed\n", len(entries), a.catalog.Len())
			for _, e := range entries {
				fmt.Fprintf(out, "  %-20s %3d steps  %2d runs  %s\n", e.ScenarioID, e.Steps, e.Runs, e.CompletedAt.Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget all completed scenarios")
	return cmd
}

func (a *app) conceptsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "concepts [name]",
		Short: "Explain the concepts the scenarios teach",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := explain.Default()
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				c, ok := catalog.Concept(args[0])
				if !ok {
					return fmt.Errorf("unknown concept %q", args[0])
				}
				a.printer(out).Concept(c)
				return nil
			}
			for _, name := range catalog.ConceptNames() {
				c, _ := catalog.Concept(name)
				fmt.Fprintf(out, "%-20s %s\n", name, c.Title)
			}
			return nil
		},
	}
}
