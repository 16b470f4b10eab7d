package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/fwbuildid/internal/buildid"
	"github.com/muurk/fwbuildid/internal/config"
	"github.com/muurk/fwbuildid/internal/elfimage"
	"github.com/muurk/fwbuildid/internal/logging"
	"github.com/muurk/fwbuildid/internal/ui"
	"github.com/muurk/fwbuildid/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fw-build-id %s\n", version.Full())
		},
	}
}

// newInfoCmd reports the build ID and section layout without writing.
func newInfoCmd(opts *rootOptions) *cobra.Command {
	var showSections bool

	cmd := &cobra.Command{
		Use:   "info ELF",
		Short: "Show the build ID and the sections it covers",
		Long: `Show the build ID of an ELF image without modifying it.

Classified build ID problems (missing symbols, wrong sizes, unknown record
types) are reported as "no build ID" rather than failing, so info can be run
against any image.`,
		Example: `  fw-build-id info build/firmware.elf
  fw-build-id info --sections build/firmware.elf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runInfo(cmd, opts, args[0], showSections)
		},
	}
	cmd.Flags().BoolVar(&showSections, "sections", false, "List the sections and how each contributes to the build ID")
	return cmd
}

func runInfo(cmd *cobra.Command, opts *rootOptions, path string, showSections bool) error {
	cfg, err := opts.setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	img, err := openImage(path, false)
	if err != nil {
		return err
	}
	defer img.Close()

	out := cmd.OutOrStdout()
	ui.PrintCommandHeader(out, "Build ID", "fw-build-id info", ui.Param{Key: "ELF", Value: path})

	insp := buildid.NewInspector(img, buildid.Config{
		RecordSymbol:  cfg.RecordSymbol,
		DerivedSymbol: cfg.DerivedSymbol,
	}, logging.GetLogger())
	res, err := insp.BuildInfo()
	if err != nil {
		return err
	}

	image := []ui.Param{
		{Key: "Class", Value: img.Class().String()},
		{Key: "Machine", Value: img.Machine().String()},
		{Key: "Byte order", Value: img.ByteOrder().String()},
	}
	gnu, hasGNU, err := img.GNUBuildID()
	if err != nil {
		return err
	}
	if hasGNU {
		image = append(image, ui.Param{Key: "GNU build ID", Value: hex.EncodeToString(gnu)})
	}

	if res.Found() {
		box := ui.NewSuccessResult(res.Kind.String(), ui.Param{Key: "Build ID", Value: res.Hex()})
		if res.ShortLen > 0 {
			box.AddDetail("Short form", res.Display(res.ShortLen))
		}
		box.AddDetail("Symbol", res.Symbol)
		box.Details = append(box.Details, image...)
		fmt.Fprintln(out, box.Render())
	} else {
		box := ui.NewWarningResult("No build ID", ui.Param{Key: "Record", Value: cfg.RecordSymbol})
		if res.RecordType != 0 {
			box.AddDetail("Record type", res.RecordType.String())
		}
		if res.UnusedGNUBuildID {
			box.AddDetail("Note", "GNU build ID present but not used by the record")
		}
		box.Details = append(box.Details, image...)
		fmt.Fprintln(out, box.Render())
	}

	if showSections {
		fmt.Fprintln(out, sectionTable(img).Render())
	}
	return nil
}

// sectionTable lists every section; rows that do not feed the build ID are muted.
func sectionTable(img *elfimage.Image) *ui.Table {
	t := ui.NewTable("#", "Section", "Kind", "Address", "Size", "Hashed")
	for _, s := range img.Sections() {
		hashed := "content"
		switch s.Kind {
		case elfimage.KindUnallocated:
			hashed = "-"
		case elfimage.KindBss:
			hashed = "size"
		default:
			if !s.HasContent {
				hashed = "address"
			}
		}
		t.AddRow(s.Kind == elfimage.KindUnallocated,
			strconv.Itoa(s.Index),
			s.Name,
			s.Kind.String(),
			fmt.Sprintf("0x%08x", s.Addr),
			strconv.FormatUint(s.Size, 10),
			hashed,
		)
	}
	return t
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the fw-build-id configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file holding the default settings.

The file is written to --config if given, otherwise to the user config
location (for example ~/.config/fw-build-id/config.yaml on Linux).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path := opts.configPath
			if path == "" {
				var err error
				if path, err = config.GetConfigPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("cannot access %s: %w", path, err)
			}

			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			out := cmd.OutOrStdout()
			source := cfg.Source
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(out, "# source: %s\n", source)
			_, err = out.Write(data)
			return err
		},
	}
}
