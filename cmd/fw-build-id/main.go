// Fw-build-id inspects and writes build IDs in firmware ELF images.
//
// By default it reports the build ID declared by the image's build ID record
// and, when the record is empty, derives a SHA-1 over the image and writes it
// in place. It can also write a SHA-1 or CRC32 of the image into any
// correctly sized symbol.
//
// Usage:
//
//	fw-build-id [flags] ELF
//	fw-build-id info ELF
//
// See 'fw-build-id --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/fwbuildid/internal/buildid"
	"github.com/muurk/fwbuildid/internal/config"
	"github.com/muurk/fwbuildid/internal/elfimage"
	"github.com/muurk/fwbuildid/internal/logging"
	"github.com/muurk/fwbuildid/internal/ui"
	"github.com/muurk/fwbuildid/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err, with a failure box and hints when stderr is a terminal.
func reportError(w io.Writer, err error) {
	if f, ok := w.(*os.File); ok && ui.IsTerminal(f) && buildid.IsBuildIDError(err) {
		ui.PrintFailure(w, "Build ID", err, buildid.TroubleshootingHints(err))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// bareDump is the NoOptDefVal of --dump; it selects the configured length.
const bareDump = "short"

// dumpFlag is the value of --dump[=N].
type dumpFlag struct {
	set   bool
	bare  bool
	chars int
}

var _ pflag.Value = (*dumpFlag)(nil)

func (d *dumpFlag) String() string {
	if !d.set || d.bare {
		return ""
	}
	return strconv.Itoa(d.chars)
}

func (d *dumpFlag) Set(s string) error {
	d.set = true
	if s == bareDump {
		d.bare = true
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid character count %q", s)
	}
	d.bare = false
	d.chars = n
	return nil
}

func (d *dumpFlag) Type() string {
	return "chars"
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string

	dump    dumpFlag
	crcSym  string
	sha1Sym string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fw-build-id [flags] ELF",
		Short: "Inspect and write firmware build IDs",
		Long: `Inspect and write build IDs in firmware ELF images.

The build ID record symbol (g_memfault_build_id) selects the scheme:
  - GNU build ID: the NT_GNU_BUILD_ID note emitted by 'ld --build-id'
  - Memfault build ID: a SHA-1 of the image stored in
    g_memfault_sdk_derived_build_id
  - none yet: a SHA-1 is derived and written into the image in place

With --crc or --sha1 a CRC32 or SHA-1 of the image is written into the named
symbol instead, independent of the record.`,
		Version: version.Version,
		Example: `  # Add a build ID if needed and print it
  fw-build-id build/firmware.elf

  # Print the first 7 characters of the build ID without modifying the image
  fw-build-id --dump build/firmware.elf

  # Print the full build ID
  fw-build-id --dump=40 build/firmware.elf

  # Write a CRC32 of the image into a 4 byte symbol
  fw-build-id --crc g_crc_build_id build/firmware.elf`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	// Disable automatic completion command generation
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./.fw-build-id.yaml, then the user config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); logs go to stderr")

	dump := cmd.Flags().VarPF(&opts.dump, "dump", "", "Print the build ID, truncated to N characters, without modifying the image (bare --dump uses dump_chars, 7 by default)")
	dump.NoOptDefVal = bareDump
	cmd.Flags().StringVar(&opts.crcSym, "crc", "", "Write a CRC32 of the image into the 4 byte `SYMBOL`")
	cmd.Flags().StringVar(&opts.sha1Sym, "sha1", "", "Write a SHA-1 of the image into the 20 byte `SYMBOL`")
	cmd.MarkFlagsMutuallyExclusive("crc", "sha1")

	cmd.AddCommand(newInfoCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the configuration and initializes logging. Log level
// precedence is --log-level, then FWBUILDID_LOG_LEVEL, then the config file.
func (o *rootOptions) setup() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	level := o.logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = cfg.LogLevel
	}
	if level != "" {
		if _, err := logging.ParseLevel(level); err != nil {
			return nil, err
		}
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		logging.Debug("Loaded config", zap.String("path", cfg.Source))
	}
	return cfg, nil
}

// request maps the flags onto an inspector request. --dump combined with a
// direct mode computes and prints without writing.
func (o *rootOptions) request() buildid.Request {
	req := buildid.Request{Mode: buildid.ModeCheckAndUpdate}
	switch {
	case o.crcSym != "":
		req.Mode = buildid.ModeDirectCRC32
		req.Symbol = o.crcSym
		req.DryRun = o.dump.set
	case o.sha1Sym != "":
		req.Mode = buildid.ModeDirectSHA1
		req.Symbol = o.sha1Sym
		req.DryRun = o.dump.set
	case o.dump.set:
		req.Mode = buildid.ModeDumpOnly
	}
	return req
}

func needsWrite(req buildid.Request) bool {
	switch req.Mode {
	case buildid.ModeCheckAndUpdate:
		return true
	case buildid.ModeDirectSHA1, buildid.ModeDirectCRC32:
		return !req.DryRun
	default:
		return false
	}
}

func openImage(path string, write bool) (*elfimage.Image, error) {
	var opts []elfimage.Option
	if write {
		opts = append(opts, elfimage.WithWrite())
	}
	img, err := elfimage.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	logging.LogImage(path, img.Class().String(), img.Machine().String(), img.ByteOrder().String(), len(img.Sections()))
	return img, nil
}

func (o *rootOptions) run(cmd *cobra.Command, path string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	cfg, err := o.setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	req := o.request()
	img, err := openImage(path, needsWrite(req))
	if err != nil {
		return err
	}
	defer img.Close()

	insp := buildid.NewInspector(img, buildid.Config{
		RecordSymbol:  cfg.RecordSymbol,
		DerivedSymbol: cfg.DerivedSymbol,
	}, logging.GetLogger())

	res, err := insp.InspectOrPatch(req)
	if err != nil {
		if errors.Is(err, buildid.ErrNoBuildID) {
			return fmt.Errorf("%w in %s; run without --dump to add one", err, path)
		}
		return err
	}

	logging.LogRawBytes("Build ID bytes", res.Value)

	chars := o.dump.chars
	if o.dump.bare {
		chars = cfg.DumpChars
	}
	printResult(cmd.OutOrStdout(), res, o.dump.set, chars)
	return nil
}

// printResult writes the lines build scripts parse.
func printResult(w io.Writer, res *buildid.Result, dump bool, chars int) {
	if dump {
		fmt.Fprintln(w, res.Display(chars))
		return
	}

	switch res.Kind {
	case buildid.KindGNUBuildID:
		fmt.Fprintf(w, "Found GNU Build ID: %s\n", res.Hex())
	case buildid.KindMemfaultSHA1:
		if res.UnusedGNUBuildID {
			fmt.Fprintln(w, "WARNING: Located a GNU build id but it's not being used by the Memfault SDK")
		}
		if res.Written {
			fmt.Fprintf(w, "Added Memfault Generated Build ID to ELF: %s\n", res.Hex())
		}
		fmt.Fprintf(w, "Found Memfault Build Id: %s\n", res.Hex())
		if res.Stale {
			fmt.Fprintln(w, "WARNING: Memfault Build Id does not match the image contents")
		}
	case buildid.KindSHA1, buildid.KindCRC32:
		if res.Written {
			fmt.Fprintf(w, "Added %s to '%s': %s\n", res.Kind, res.Symbol, res.Hex())
			return
		}
		fmt.Fprintf(w, "Found %s in '%s': %s\n", res.Kind, res.Symbol, res.Hex())
	}
}
