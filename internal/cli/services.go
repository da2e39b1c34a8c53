package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cronrun/internal/lifecycle"
	"github.com/roach88/cronrun/internal/registry"
	"github.com/roach88/cronrun/internal/services"
)

// ServiceInfo describes one allow-listed service.
type ServiceInfo struct {
	Name       string   `json:"name"`
	Registered bool     `json:"registered"`
	Operations []string `json:"operations"`
}

// NewServicesCommand creates the services command.
func NewServicesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List allow-listed services and their operations",
		Long: `List every allow-listed service, whether an implementation is
registered for it, and the operations it exposes.

Example:
  cronrun services
  cronrun services --config ./cronrun.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(rootOpts, cmd)
		},
	}
}

func runServices(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger, err := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log settings", err)
	}

	// Listing never acquires a resource, so the manager stays empty.
	m := lifecycle.New(logger)
	defer m.Shutdown()

	reg := registry.New(cfg.AllowedServices)
	services.Register(reg, m, logger)
	infos := listServices(reg)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No services allowed.")
		return nil
	}
	for _, info := range infos {
		if !info.Registered {
			fmt.Fprintf(out, "%s (not registered)\n", info.Name)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", info.Name, strings.Join(info.Operations, ", "))
	}
	return nil
}

func listServices(reg *registry.Registry) []ServiceInfo {
	infos := []ServiceInfo{}
	for _, name := range reg.Allowed() {
		ops, ok := reg.OperationNames(name)
		if ops == nil {
			ops = []string{}
		}
		infos = append(infos, ServiceInfo{Name: name, Registered: ok, Operations: ops})
	}
	return infos
}
