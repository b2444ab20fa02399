package cmds

import (
	"context"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/pkg/errors"
)

// pickSpreadsheet asks for a spreadsheet with a file picker rooted at dir.
func pickSpreadsheet(ctx context.Context, dir string) (string, error) {
	types := make([]string, 0, len(session.AllowedExtensions))
	for _, ext := range session.AllowedExtensions {
		types = append(types, "."+ext)
	}

	var path string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewFilePicker().
				Title("Spreadsheet to analyse").
				Description(strings.Join(types, ", ")).
				CurrentDirectory(dir).
				AllowedTypes(types).
				Height(12).
				Validate(session.ValidateFileName).
				Value(&path),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errors.New("no file selected")
		}
		return "", errors.Wrap(err, "file picker")
	}
	return path, nil
}
