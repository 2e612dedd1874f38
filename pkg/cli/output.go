package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// OutputFormat names an encoding for reports and profiles.
type OutputFormat string

const (
	FormatYAML    OutputFormat = "yaml"
	FormatJSON    OutputFormat = "json"
	FormatMsgpack OutputFormat = "msgpack" // same encoding as the run history
	// FormatRaw writes strings and byte slices unchanged and anything else
	// as YAML.
	FormatRaw OutputFormat = "raw"
)

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat // empty means YAML
	File   string       // empty means stdout
	Indent string       // JSON indentation, two spaces if empty

	// Writer takes precedence over File.
	Writer io.Writer
}

type encodeFunc func(w io.Writer, v any, opts OutputOptions) error

var encoders = map[OutputFormat]encodeFunc{
	"":            encodeYAML,
	FormatYAML:    encodeYAML,
	FormatJSON:    encodeJSON,
	FormatMsgpack: encodeMsgpack,
	FormatRaw:     encodeRaw,
}

// Output encodes v in the requested format to the requested destination.
// The format is checked before any file is created.
func Output(v any, opts OutputOptions) error {
	enc, ok := encoders[opts.Format]
	if !ok {
		return fmt.Errorf("cli: unsupported output format: %s", opts.Format)
	}

	w := opts.Writer
	if w == nil && opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("cli: create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}
	return enc(w, v, opts)
}

func encodeYAML(w io.Writer, v any, _ OutputOptions) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("cli: encode yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func encodeJSON(w io.Writer, v any, opts OutputOptions) error {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", indent)
	return enc.Encode(v)
}

func encodeMsgpack(w io.Writer, v any, _ OutputOptions) error {
	return msgpack.NewEncoder(w).Encode(v)
}

func encodeRaw(w io.Writer, v any, opts OutputOptions) error {
	switch v := v.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	}
	return encodeYAML(w, v, opts)
}

// Message sinks for the Print helpers; tests swap them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// PrintSuccess prints a line prefixed with a check mark.
func PrintSuccess(format string, args ...any) { printLine(stdout, "✓ ", format, args) }

// PrintInfo prints an informational line.
func PrintInfo(format string, args ...any) { printLine(stdout, "ℹ ", format, args) }

// PrintWarning prints a warning line.
func PrintWarning(format string, args ...any) { printLine(stdout, "⚠ ", format, args) }

// PrintError prints an error line to stderr.
func PrintError(format string, args ...any) { printLine(stderr, "Error: ", format, args) }

func printLine(w io.Writer, prefix, format string, args []any) {
	fmt.Fprintf(w, prefix+format+"\n", args...)
}
