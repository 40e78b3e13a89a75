package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"bookhook/internal/config"
	"bookhook/internal/security"
	"bookhook/pkg/fileutil"
	"bookhook/pkg/templates"

	"github.com/spf13/cobra"
)

var (
	initOutput  string
	initForce   bool
	initSystemd bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter bookhook.yaml with a freshly generated webhook secret.

With --systemd, print a systemd unit for the configuration to stdout as well.

Example:
  bookhook init --output /etc/bookhook/bookhook.yaml --systemd > bookhook.service`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", config.DefaultFileName, "Where to write the configuration file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initSystemd, "systemd", false, "Print a systemd service unit to stdout")
}

func runInit(cmd *cobra.Command, args []string) error {
	if fileutil.FileExists(initOutput) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
	}

	secret, err := security.GenerateSecret()
	if err != nil {
		return err
	}

	workDir, err := filepath.Abs(filepath.Dir(initOutput))
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	rendered, err := templates.RenderConfig(
		config.DefaultHost,
		config.DefaultPort,
		secret,
		filepath.Join(workDir, "bookings.db"),
		filepath.Join(workDir, "bookhook.log"),
	)
	if err != nil {
		return err
	}

	if err := fileutil.EnsureParentDir(initOutput, 0750); err != nil {
		return err
	}
	// The file holds the signing secret
	if err := os.WriteFile(initOutput, []byte(rendered), 0600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", initOutput)

	if !initSystemd {
		return nil
	}

	binary, err := os.Executable()
	if err != nil {
		binary = "/usr/local/bin/bookhook"
	}
	configPath, err := filepath.Abs(initOutput)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	userName, groupName := "bookhook", "bookhook"
	if u, err := user.Current(); err == nil {
		userName = u.Username
		if g, err := user.LookupGroupId(u.Gid); err == nil {
			groupName = g.Name
		}
	}

	unit, err := templates.RenderSystemdService(userName, groupName, workDir, binary, configPath)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), unit)
	return nil
}
