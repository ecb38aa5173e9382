// Package labels loads the ordered class names a gesture model was trained on.
//
// The position of a label in the Set is the contract with the model: output
// index i of the model's score vector belongs to label i.
package labels

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoLabels is returned when a label resource contains no rows.
var ErrNoLabels = errors.New("label resource contains no labels")

// Set is an immutable, ordered list of class names.
type Set struct {
	names []string
	index map[string]int
}

// Load reads a CSV file and uses the first field of each row as a label.
// The path is resolved relative to the working directory.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return Set{}, fmt.Errorf("parse labels %s: %w", path, err)
	}
	return set, nil
}

// Parse reads labels from CSV data.
func Parse(r io.Reader) (Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var names []string
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Set{}, err
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			return Set{}, fmt.Errorf("row %d: empty label", line)
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return Set{}, ErrNoLabels
	}

	return New(names), nil
}

// New builds a Set from names, copying the slice. When a name repeats, Index
// reports its first position.
func New(names []string) Set {
	s := Set{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(s.names, names)
	for i, name := range s.names {
		if _, ok := s.index[name]; !ok {
			s.index[name] = i
		}
	}
	return s
}

// Len returns the number of labels.
func (s Set) Len() int {
	return len(s.names)
}

// At returns the label at position i.
func (s Set) At(i int) string {
	return s.names[i]
}

// Index returns the position of name, or -1 if it is not in the set.
func (s Set) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Names returns a copy of the labels in order.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
