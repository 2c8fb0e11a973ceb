package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deusflow/ainews/internal/digest"
)

// StdoutNotifier prints the plain-text digest, for dry runs.
type StdoutNotifier struct {
	W io.Writer
}

func (s StdoutNotifier) Name() string { return "stdout" }

func (s StdoutNotifier) Notify(_ context.Context, d digest.Digest) error {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", d.Subject(), d.Text())
	return err
}
