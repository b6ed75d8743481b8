package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imagefin/internal/app"
)

type finalizeOptions struct {
	Manifests   []string
	Auxiliary   []string
	Outputs     []string
	Binaries    []string
	BuildIDFile string
	Depfile     string
	StripDir    string
	Variants    string
	Objcopy     string
}

func newFinalizeCommand() *cobra.Command {
	opts := finalizeOptions{}
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Resolve ELF dependency closures and emit the final image manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFinalize(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Manifests, "manifest", nil, "Selected manifest as group:path (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Auxiliary, "auxiliary", nil, "Auxiliary manifest path (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Outputs, "output", nil, "Output manifest path, index = group (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Binaries, "binary", nil, "Promote auxiliary targets matching group:pattern (repeatable)")
	cmd.Flags().StringVar(&opts.BuildIDFile, "build-id-file", "", "Build-ID index output path")
	cmd.Flags().StringVar(&opts.Depfile, "depfile", "", "Depfile output path")
	cmd.Flags().StringVar(&opts.StripDir, "strip-dir", "", "Working directory for stripped binaries")
	cmd.Flags().StringVar(&opts.Variants, "variants", "", "Variant config file path")
	cmd.Flags().StringVar(&opts.Objcopy, "objcopy", "", "objcopy tool used for stripping")

	_ = viper.BindPFlag("manifests", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("auxiliary", cmd.Flags().Lookup("auxiliary"))
	_ = viper.BindPFlag("outputs", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("binaries", cmd.Flags().Lookup("binary"))
	_ = viper.BindPFlag("build_id_file", cmd.Flags().Lookup("build-id-file"))
	_ = viper.BindPFlag("depfile", cmd.Flags().Lookup("depfile"))
	_ = viper.BindPFlag("strip_dir", cmd.Flags().Lookup("strip-dir"))
	_ = viper.BindPFlag("variants", cmd.Flags().Lookup("variants"))
	_ = viper.BindPFlag("objcopy", cmd.Flags().Lookup("objcopy"))

	return cmd
}

func runFinalize(ctx context.Context, cmd *cobra.Command, opts finalizeOptions) error {
	service := newAppService()
	result, err := service.Finalize(ctx, app.FinalizeRequest{
		Manifests:   resolveStrings(cmd, opts.Manifests, "manifests", "manifest"),
		Auxiliary:   resolveStrings(cmd, opts.Auxiliary, "auxiliary", "auxiliary"),
		Outputs:     resolveStrings(cmd, opts.Outputs, "outputs", "output"),
		Binaries:    resolveStrings(cmd, opts.Binaries, "binaries", "binary"),
		BuildIDFile: resolveString(cmd, opts.BuildIDFile, "build_id_file", "build-id-file"),
		Depfile:     resolveString(cmd, opts.Depfile, "depfile", "depfile"),
		StripDir:    resolveString(cmd, opts.StripDir, "strip_dir", "strip-dir"),
		Variants:    resolveString(cmd, opts.Variants, "variants", "variants"),
		Objcopy:     resolveString(cmd, opts.Objcopy, "objcopy", "objcopy"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("finalized: %d binaries, %d other entries, %d manifests\n",
		result.Binaries, result.NonBinaries, len(result.Outputs))
	return nil
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || name == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
