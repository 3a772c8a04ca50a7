package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func checkOutputFormat() error {
	switch outputFormat {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (json, yaml)", outputFormat)
	}
}

// printResult writes v in the selected format. YAML goes through the JSON
// encoding first so amounts and ids keep their JSON form.
func printResult(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if outputFormat == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}
