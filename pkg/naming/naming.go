// Package naming attaches names to the identity under the pointer.
package naming

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrCodeEU/facetrack/pkg/logging"
)

// ErrNoSelection is returned when no face is selected.
var ErrNoSelection = errors.New("no face selected")

// Selection hands out the currently selected identity. Taking it resets the
// selection to none.
type Selection interface {
	TakeSelection() (int64, bool)
}

// Names is the part of the identity store the controller edits.
type Names interface {
	Name(id int64) string
	SetName(id int64, name string) error
	Purge(id int64) error
}

// Prompter asks the user for a new name. ok is false when the user cancels.
type Prompter interface {
	PromptName(id int64, current string) (name string, ok bool, err error)
}

// Outcome describes what a rename did.
type Outcome int

const (
	Cancelled Outcome = iota
	Renamed
	Purged
)

func (o Outcome) String() string {
	switch o {
	case Renamed:
		return "renamed"
	case Purged:
		return "purged"
	default:
		return "cancelled"
	}
}

// Controller edits the name of the selected identity.
type Controller struct {
	selection Selection
	names     Names
	prompter  Prompter
}

// NewController creates a naming controller.
func NewController(selection Selection, names Names, prompter Prompter) *Controller {
	return &Controller{
		selection: selection,
		names:     names,
		prompter:  prompter,
	}
}

// Rename takes the selection and prompts for its name. A non-empty answer
// names the identity, an empty one purges it and a cancel changes nothing.
// The selection is cleared before the prompt is shown.
func (c *Controller) Rename() (int64, Outcome, error) {
	id, ok := c.selection.TakeSelection()
	if !ok {
		return 0, Cancelled, ErrNoSelection
	}

	log := logging.Component("naming").WithField("id", id)
	current := c.names.Name(id)

	name, ok, err := c.prompter.PromptName(id, current)
	if err != nil {
		return id, Cancelled, fmt.Errorf("failed to read name: %w", err)
	}
	if !ok {
		log.Debug("Rename cancelled")
		return id, Cancelled, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		if err := c.names.Purge(id); err != nil {
			return id, Cancelled, fmt.Errorf("failed to purge identity %d: %w", id, err)
		}
		log.Debug("Identity purged")
		return id, Purged, nil
	}

	if err := c.names.SetName(id, name); err != nil {
		return id, Cancelled, fmt.Errorf("failed to name identity %d: %w", id, err)
	}
	log.WithField("name", name).Debug("Identity named")
	return id, Renamed, nil
}

// CancelInput is the line a LinePrompter treats as a cancel.
const CancelInput = "/cancel"

// LinePrompter reads names line by line, as from a terminal. End of input
// and CancelInput both cancel.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter reading from in and writing prompts to
// out. in is shared with the caller so other commands can be read from it.
func NewLinePrompter(in *bufio.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: in, out: out}
}

// PromptName implements Prompter.
func (p *LinePrompter) PromptName(id int64, current string) (string, bool, error) {
	if current != "" {
		fmt.Fprintf(p.out, "Name for ID %d [%s] (empty to forget, %s to keep): ", id, current, CancelInput)
	} else {
		fmt.Fprintf(p.out, "Name for ID %d (empty to forget, %s to keep): ", id, CancelInput)
	}

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", false, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", false, err
		}
	}

	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == CancelInput {
		return "", false, nil
	}
	return line, true, nil
}
