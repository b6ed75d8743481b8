package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imagefin/internal/app"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the ELF metadata of one binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runInspect(ctx context.Context, path string) error {
	service := newAppService()
	result, err := service.Inspect(ctx, app.InspectRequest{
		Path:    path,
		Objcopy: viper.GetString("objcopy"),
	})
	if err != nil {
		return err
	}
	info := result.Info
	fmt.Printf("file:     %s\n", info.Filename)
	fmt.Printf("soname:   %s\n", info.Soname)
	fmt.Printf("interp:   %s\n", info.Interp)
	fmt.Printf("build-id: %s\n", info.BuildID)
	fmt.Printf("needed:   %s\n", strings.Join(info.Needed, " "))
	fmt.Printf("stripped: %t\n", info.Stripped)
	return nil
}
