package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shaderlab/internal/source"
	"shaderlab/internal/template"
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] <file>",
	Short: "Print the user region of a shader document",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble [flags] <fragment-file|->",
	Short: "Wrap a fragment in the boilerplate and print the shader document",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssemble,
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	extractCmd.Flags().Bool("default", false, "print the default fragment when the document has no user region")
	assembleCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	useDefault, err := cmd.Flags().GetBool("default")
	if err != nil {
		return fmt.Errorf("failed to get default flag: %w", err)
	}

	f, err := source.Load(args[0])
	if err != nil {
		return err
	}
	frag, ok := template.ExtractRegion(template.Document(f.Text()))
	if !ok {
		if !useDefault {
			return fmt.Errorf("%s: no user region (missing %q / %q)", args[0], template.BeginSentinel, template.EndSentinel)
		}
		if frag, err = cfg.DefaultFragment(); err != nil {
			return err
		}
		if frag == "" {
			tpl, err := template.For(cfg.Dialect())
			if err != nil {
				return err
			}
			frag = tpl.DefaultFragment()
		}
	}
	return writeOutput(cmd, string(frag)+"\n")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tpl, err := template.For(cfg.Dialect())
	if err != nil {
		return err
	}

	var text string
	if args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		f, err := source.NewVirtual("<stdin>", data)
		if err != nil {
			return err
		}
		text = f.Text()
	} else {
		f, err := source.Load(args[0])
		if err != nil {
			return err
		}
		text = f.Text()
	}
	frag := template.Fragment(strings.TrimRight(text, "\n"))
	return writeOutput(cmd, string(tpl.Assemble(frag)))
}

// writeOutput honours --output; files are replaced atomically.
func writeOutput(cmd *cobra.Command, text string) error {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if out == "" || out == "-" {
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	if err := source.WriteFile(out, []byte(text)); err != nil {
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
	}
	return nil
}
