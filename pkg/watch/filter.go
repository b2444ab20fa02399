package watch

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/denormal/go-gitignore"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// IgnoreFile holds gitignore-style patterns for files the watcher must skip.
const IgnoreFile = ".datalensignore"

// DefaultMaxFileSize is 50 MiB.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// DefaultExcludedNames matches lock and temporary files that spreadsheet
// editors leave next to the document.
var DefaultExcludedNames = []*regexp.Regexp{
	regexp.MustCompile(`^~\$`),
	regexp.MustCompile(`^\.~lock\..*#$`),
	regexp.MustCompile(`^\.`),
	regexp.MustCompile(`\.(tmp|part|crdownload)$`),
}

// Filter decides which files in the watch folder are uploaded.
type Filter struct {
	MaxFileSize   int64
	ExcludedNames []*regexp.Regexp
	Ignore        gitignore.GitIgnore
}

type FilterOption func(*Filter)

// WithMaxFileSize skips files larger than size bytes. Zero disables the check.
func WithMaxFileSize(size int64) FilterOption {
	return func(f *Filter) {
		f.MaxFileSize = size
	}
}

// WithExcludedNames adds regular expressions matched against the base name.
// Invalid patterns are logged and skipped.
func WithExcludedNames(patterns ...string) FilterOption {
	return func(f *Filter) {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				log.Warn().Err(err).Str("pattern", p).Msg("watch: skipping invalid exclude pattern")
				continue
			}
			f.ExcludedNames = append(f.ExcludedNames, re)
		}
	}
}

// NewFilter creates a filter with the default size limit and the lock and
// temporary file patterns in DefaultExcludedNames.
func NewFilter(options ...FilterOption) *Filter {
	f := &Filter{
		MaxFileSize:   DefaultMaxFileSize,
		ExcludedNames: append([]*regexp.Regexp(nil), DefaultExcludedNames...),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// LoadIgnoreFile reads dir/.datalensignore when present.
func (f *Filter) LoadIgnoreFile(dir string) error {
	p := filepath.Join(dir, IgnoreFile)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", p)
	}
	ig, err := gitignore.NewFromFile(p)
	if err != nil {
		return errors.Wrapf(err, "load %s", p)
	}
	f.Ignore = ig
	return nil
}

// MatchName checks the parts of the filter that need no file system access.
func (f *Filter) MatchName(path string) bool {
	if session.ValidateFileName(path) != nil {
		return false
	}
	base := filepath.Base(path)
	for _, re := range f.ExcludedNames {
		if re.MatchString(base) {
			return false
		}
	}
	return true
}

// Allow reports whether path should be uploaded. It stats the file, so it
// is meant to run once the file has settled.
func (f *Filter) Allow(path string) bool {
	if !f.MatchName(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if f.MaxFileSize > 0 && info.Size() > f.MaxFileSize {
		log.Info().Str("path", path).Int64("size", info.Size()).Msg("watch: skipping file above size limit")
		return false
	}
	if f.Ignore != nil {
		if m := f.Ignore.Match(path); m != nil && m.Ignore() {
			return false
		}
	}
	return true
}
