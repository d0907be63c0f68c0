package ftpserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gonzalop/ftplab/internal/logging"
)

// RootDirs are the directories created inside a fresh server root.
var RootDirs = []string{"uploads", "downloads", "shared"}

// WelcomeFile is the sample file placed in a fresh server root.
const WelcomeFile = "welcome.txt"

// PrepareRoot makes sure root exists and returns its absolute path. A missing
// root is created with the standard layout and a welcome file stamped with
// now; an existing root is left as it is.
func PrepareRoot(root string, now time.Time, out io.Writer) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve server root: %w", err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("server root %s is not a directory", abs)
	case err == nil:
		return abs, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("stat server root: %w", err)
	}

	for _, dir := range RootDirs {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}

	welcome := strings.Join([]string{
		"Welcome to the FTP Server!",
		"This is a test file for cybersecurity lab purposes.",
		"Server started at: " + now.Format(logging.TimeLayout),
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(abs, WelcomeFile), []byte(welcome), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", WelcomeFile, err)
	}

	fmt.Fprintf(out, "Created FTP server directory: %s\n", abs)
	return abs, nil
}
