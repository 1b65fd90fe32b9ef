// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cordada/gcp-utils-go/pkg/gcperrors"
	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates an output format name
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(name)); f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (must be text, json, or yaml)", name)
	}
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer. An unknown format falls back to text.
func NewPrinter(format string, writer io.Writer) *Printer {
	f, err := ParseOutputFormat(format)
	if err != nil {
		f = OutputFormatText
	}
	return &Printer{
		format: f,
		writer: writer,
	}
}

// PrintGRN prints a resource name
func (p *Printer) PrintGRN(name string) error {
	if p.format == OutputFormatText {
		fmt.Fprintln(p.writer, name)
		return nil
	}
	return p.print(map[string]interface{}{
		"grn": name,
	})
}

// PrintEncryptedData prints encrypted data, base64 encoded
func (p *Printer) PrintEncryptedData(cryptoKeyGRN string, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	if p.format == OutputFormatText {
		fmt.Fprintln(p.writer, encoded)
		return nil
	}
	return p.print(map[string]interface{}{
		"crypto_key":     cryptoKeyGRN,
		"encrypted_data": encoded,
	})
}

// PrintDecryptedData prints plain data. Text output writes the raw bytes;
// structured output encodes them as base64.
func (p *Printer) PrintDecryptedData(cryptoKeyGRN string, data []byte) error {
	if p.format == OutputFormatText {
		_, err := p.writer.Write(data)
		return err
	}
	return p.print(map[string]interface{}{
		"crypto_key": cryptoKeyGRN,
		"plain_data": base64.StdEncoding.EncodeToString(data),
	})
}

// PrintBindings prints the bindings of an IAM policy
func (p *Printer) PrintBindings(resource string, bindings []gcpkms.Binding) error {
	if p.format == OutputFormatText {
		if len(bindings) == 0 {
			fmt.Fprintln(p.writer, "No bindings found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-45s %s\n", "ROLE", "MEMBERS")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, b := range bindings {
			fmt.Fprintf(p.writer, "%-45s %s\n", b.Role, strings.Join(b.Members, ", "))
		}
		return nil
	}
	return p.print(map[string]interface{}{
		"resource": resource,
		"bindings": bindings,
	})
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	if p.format == OutputFormatText {
		fmt.Fprintln(p.writer, message)
		return nil
	}
	return p.print(map[string]interface{}{
		"status":  "success",
		"message": message,
	})
}

// PrintError prints an error message. Classified errors include their kind.
func (p *Printer) PrintError(err error) error {
	kind, classified := gcperrors.KindOf(err)
	if p.format == OutputFormatText {
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
	out := map[string]interface{}{
		"status": "error",
		"error":  err.Error(),
	}
	if classified {
		out["kind"] = kind.String()
	}
	return p.print(out)
}

// print writes data in the structured format of p
func (p *Printer) print(data interface{}) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(data)
	case OutputFormatYAML:
		return p.printYAML(data)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
