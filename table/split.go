package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Split copies the file at path into parts named path.1, path.2, ... each
// holding at most linesPerPart lines, in order. Every line is written with a
// trailing newline. The first part is always created, even for an empty
// source. The header line is not repeated, so only the first part loads as a
// table with named columns.
func Split(path string, linesPerPart int) ([]string, error) {
	if linesPerPart <= 0 {
		return nil, ErrInvalidLinesPerPart
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	reader := bufio.NewReaderSize(in, 1<<20)

	part := 1
	name := partName(path, part)
	out, w, err := createPart(name)
	if err != nil {
		return nil, err
	}
	created := []string{name}

	lines := 0
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			out.Close()
			return created, readErr
		}
		if line == "" && errors.Is(readErr, io.EOF) {
			break
		}

		if lines == linesPerPart {
			if err := closePart(out, w); err != nil {
				return created, err
			}
			part++
			name = partName(path, part)
			out, w, err = createPart(name)
			if err != nil {
				return created, err
			}
			created = append(created, name)
			lines = 0
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if _, err := w.WriteString(line + "\n"); err != nil {
			out.Close()
			return created, err
		}
		lines++

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if err := closePart(out, w); err != nil {
		return created, err
	}
	return created, nil
}

func partName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

func createPart(name string) (*os.File, *bufio.Writer, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return f, bufio.NewWriter(f), nil
}

func closePart(f *os.File, w *bufio.Writer) error {
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
