package cli

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"finalize", "inspect"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootCommandAttachesContextLogger(t *testing.T) {
	root := newRootCommand()
	root.SetContext(t.Context())
	require.NoError(t, root.PersistentPreRunE(root, nil))

	// Subcommands log through log.Ctx(cmd.Context()); without a logger on the
	// context zerolog falls back to the disabled logger and the missing-debug
	// warning would never reach the operator.
	logger := zerolog.Ctx(root.Context())
	assert.NotEqual(t, zerolog.Disabled, logger.GetLevel())
}

func TestFinalizeCommandFlags(t *testing.T) {
	cmd := newFinalizeCommand()
	flags := []string{
		"manifest", "auxiliary", "output", "binary",
		"build-id-file", "depfile", "strip-dir",
		"variants", "objcopy",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestInspectCommandRequiresArg(t *testing.T) {
	cmd := newInspectCommand()
	require.NotNil(t, cmd.Args)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"out/app"}))
}

// ---------- Helper function tests ----------

func TestFlagChanged(t *testing.T) {
	cmd := newFinalizeCommand()
	assert.False(t, flagChanged(cmd, "depfile"))
	require.NoError(t, cmd.Flags().Set("depfile", "out/boot.d"))
	assert.True(t, flagChanged(cmd, "depfile"))
	assert.False(t, flagChanged(cmd, "no-such-flag"))
	assert.False(t, flagChanged(nil, "depfile"))
}

func TestResolveStringPrefersChangedFlag(t *testing.T) {
	cmd := newFinalizeCommand()
	require.NoError(t, cmd.Flags().Set("strip-dir", "work/stripped"))
	assert.Equal(t, "work/stripped", resolveString(cmd, "work/stripped", "strip_dir", "strip-dir"))
}

func TestResolveStringWithoutCommand(t *testing.T) {
	assert.Equal(t, "work/stripped", resolveString(nil, "work/stripped", "strip_dir", "strip-dir"))
}

func TestResolveStringsWithoutCommand(t *testing.T) {
	values := []string{"0:boot.manifest"}
	assert.Equal(t, values, resolveStrings(nil, values, "manifests", "manifest"))
}

// ---------- Exit code mapping ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		code errbuilder.ErrCode
		want int
	}{
		{name: "invalid argument", code: errbuilder.CodeInvalidArgument, want: 2},
		{name: "structural conflict", code: errbuilder.CodeAlreadyExists, want: 2},
		{name: "auxiliary violation", code: errbuilder.CodeFailedPrecondition, want: 3},
		{name: "missing dependency", code: errbuilder.CodeNotFound, want: 4},
		{name: "identity mismatch", code: errbuilder.CodeInternal, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errbuilder.New().WithCode(tt.code).WithMsg(tt.name)
			assert.Equal(t, tt.want, exitCodeForError(err))
		})
	}
}
