// Package templatestore keeps invoice template HTML/CSS and uploaded logos
// on the local filesystem, one directory per template.
package templatestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lucafranzi/contabile/internal/domain"
)

// fieldPattern matches {{ field_name }} placeholders in template HTML.
var fieldPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Store lays templates out as <root>/<name>/template.html plus style.css,
// and invoice logos as <root>/logos/<invoice_number>/<filename>.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create templates dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) dir(name string) string {
	// Base strips any path components from user-supplied names.
	return filepath.Join(s.root, filepath.Base(name))
}

func (s *Store) Save(name string, html, css []byte) error {
	dir := s.dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "template.html"), html, 0o644); err != nil {
		return fmt.Errorf("write template html: %w", err)
	}
	if len(css) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "style.css"), css, 0o644); err != nil {
			return fmt.Errorf("write template css: %w", err)
		}
	}
	return nil
}

func (s *Store) Content(name string) (string, string, error) {
	html, err := os.ReadFile(filepath.Join(s.dir(name), "template.html"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", &domain.ErrNotFound{Resource: "template", ID: name}
		}
		return "", "", fmt.Errorf("read template html: %w", err)
	}
	css, err := os.ReadFile(filepath.Join(s.dir(name), "style.css"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", "", fmt.Errorf("read template css: %w", err)
	}
	return string(html), string(css), nil
}

// Fields returns the distinct placeholder names found in the template HTML,
// sorted for stable output.
func (s *Store) Fields(name string) ([]string, error) {
	html, _, err := s.Content(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var fields []string
	for _, m := range fieldPattern.FindAllStringSubmatch(html, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		fields = append(fields, m[1])
	}
	sort.Strings(fields)
	return fields, nil
}

// Render substitutes placeholders with the given data. Placeholders with no
// value render as empty strings rather than leaking braces into the output.
func (s *Store) Render(name string, data map[string]string) (string, error) {
	html, css, err := s.Content(name)
	if err != nil {
		return "", err
	}
	rendered := fieldPattern.ReplaceAllStringFunc(html, func(match string) string {
		field := fieldPattern.FindStringSubmatch(match)[1]
		return data[field]
	})
	if css != "" {
		rendered = strings.Replace(rendered, "</head>", "<style>\n"+css+"\n</style>\n</head>", 1)
	}
	return rendered, nil
}

func (s *Store) Delete(name string) error {
	dir := s.dir(name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return &domain.ErrNotFound{Resource: "template", ID: name}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete template dir: %w", err)
	}
	return nil
}

// SaveLogo stores an uploaded logo under a per-invoice directory and
// returns the stored path.
func (s *Store) SaveLogo(invoiceNumber, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.root, "logos", filepath.Base(invoiceNumber))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create logo dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write logo: %w", err)
	}
	return path, nil
}
