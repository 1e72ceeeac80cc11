package main

import (
	"fmt"
	"io"

	"patchpilot/network"
)

func emit(w io.Writer, jsonOut bool, v any, pretty func() string) error {
	if jsonOut {
		b, err := network.JSON.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize response in JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err := fmt.Fprint(w, pretty())
	return err
}
