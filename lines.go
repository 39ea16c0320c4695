package ambient

import (
	"context"
	"fmt"
	"io"
)

// Lines writes each line followed by "\n" to the ambient writer of ctx in a
// single access. It does nothing when no writer is installed. Writing stops
// at the first error, which is returned.
func Lines(ctx context.Context, lines ...string) error {
	err, _ := Access(ctx, func(h *Handle) error {
		return writeLines(h, lines)
	})
	return err
}

// Println formats args like fmt.Println and writes them to the ambient
// writer of ctx. Without args it writes an empty line.
func Println(ctx context.Context, args ...any) error {
	err, _ := Access(ctx, func(h *Handle) error {
		_, err := fmt.Fprintln(h, args...)
		return err
	})
	return err
}

// Printf formats according to format, appends "\n" and writes the result to
// the ambient writer of ctx.
func Printf(ctx context.Context, format string, args ...any) error {
	err, _ := Access(ctx, func(h *Handle) error {
		return writef(h, format, args)
	})
	return err
}

// Lines is the registry form of the package-level Lines.
func (r *Registry) Lines(lines ...string) error {
	err, _ := AccessIn(r, func(h *Handle) error {
		return writeLines(h, lines)
	})
	return err
}

// Println is the registry form of the package-level Println.
func (r *Registry) Println(args ...any) error {
	err, _ := AccessIn(r, func(h *Handle) error {
		_, err := fmt.Fprintln(h, args...)
		return err
	})
	return err
}

// Printf is the registry form of the package-level Printf.
func (r *Registry) Printf(format string, args ...any) error {
	err, _ := AccessIn(r, func(h *Handle) error {
		return writef(h, format, args)
	})
	return err
}

func writeLines(w io.StringWriter, lines []string) error {
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args []any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
