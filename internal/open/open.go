// Package open shows a transcript in the user's editor or pager.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/mmem/internal/session"
)

// LineForTurn finds the source line of a turn by replaying the file, so the
// index does not have to store line numbers. A negative turn means line 1.
func LineForTurn(path string, turn int) (int, error) {
	if turn < 0 {
		return 1, nil
	}
	e, err := session.LoadByTurn(path, turn)
	if err != nil {
		return 0, err
	}
	return e.Line, nil
}

// OpenSession opens path in $EDITOR (default less) positioned at turn.
func OpenSession(path string, turn int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	lineNum, err := LineForTurn(path, turn)
	if err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := editorCommand(editor, path, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}
