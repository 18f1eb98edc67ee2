package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

// FileSource loads instances from disk. Relative references are resolved
// against Dir; a reference without extension is tried as "<ref>.vrp".
type FileSource struct {
	Dir     string
	Options domain.InstanceOptions
}

var _ ports.InstanceSource = FileSource{}

func (f FileSource) resolve(ref string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) && f.Dir != "" {
		path = filepath.Join(f.Dir, path)
	}
	if filepath.Ext(path) == "" {
		if _, err := os.Stat(path + ".vrp"); err == nil {
			return path + ".vrp", nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("instance %q: %w", ref, ports.ErrNotFound)
		}
		return "", err
	}
	return path, nil
}

func (f FileSource) Load(ctx context.Context, ref string) (_ *domain.Instance, err error) {
	defer obs.Time(ctx, "instance.file.Load")(&err)

	path, err := f.resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load instance: open %q: %w", path, err)
	}
	defer file.Close()

	in, err := Parse(file, path, f.Options)
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", path, err)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in, nil
}

// Parse picks the reader by the extension of name: ".json" is a Document,
// anything else CVRPLIB text.
func Parse(r io.Reader, name string, opts domain.InstanceOptions) (*domain.Instance, error) {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return ParseJSON(r, opts)
	}
	return ParseVRP(r, opts)
}
