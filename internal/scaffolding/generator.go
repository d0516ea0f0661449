// Package scaffolding creates new magic projects.
package scaffolding

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/errors"
)

// ProjectGenerator writes the layout of a magic project.
type ProjectGenerator struct {
	fileName  string
	values    config.Values
	templates []FileTemplate
}

// NewProjectGenerator creates a generator writing the config file fileName
// with values. Empty arguments fall back to magic.config and the defaults.
func NewProjectGenerator(fileName string, values config.Values) *ProjectGenerator {
	if fileName == "" {
		fileName = config.DefaultFileName
	}
	if values == nil {
		values = config.Defaults()
	}
	return &ProjectGenerator{
		fileName:  fileName,
		values:    values.Clone(),
		templates: ProjectTemplates(),
	}
}

// CreateProject creates a new project at path with the default layout.
func CreateProject(path string) error {
	_, err := NewProjectGenerator("", nil).Create(path)
	return err
}

// Setup writes a config file with the default options into dir and returns
// the content written.
func Setup(dir string) (string, error) {
	return NewProjectGenerator("", nil).Setup(dir)
}

// Complete adds whatever is missing from the default layout to an existing
// directory.
func Complete(dir string) ([]string, error) {
	return NewProjectGenerator("", nil).Complete(dir)
}

// Create makes a new project directory at path. The path must not exist.
// It returns the files and directories created.
func (g *ProjectGenerator) Create(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeNoPath, "no path provided, usage: magic new <path>")
	}

	if _, err := os.Stat(path); err == nil {
		entries, readErr := os.ReadDir(path)
		if readErr == nil && len(entries) > 0 {
			return nil, sentinelAt(errors.ErrDirectoryNotEmpty, path)
		}
		return nil, sentinelAt(errors.ErrDirectoryExists, path)
	} else if !os.IsNotExist(err) {
		return nil, errors.NewIOError(path, "inspect project directory", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.NewIOError(path, "create project directory", err)
	}

	return g.Complete(path)
}

// Setup writes the config file into dir, replacing any existing one.
func (g *ProjectGenerator) Setup(dir string) (string, error) {
	file := filepath.Join(dir, g.fileName)
	if err := config.WriteFile(file, g.values); err != nil {
		return "", err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return "", errors.NewIOError(file, "read config", err)
	}
	return string(content), nil
}

// Complete creates the config file, the project directories and the starter
// files that do not exist yet in dir. Existing files are never touched.
func (g *ProjectGenerator) Complete(dir string) ([]string, error) {
	var created []string

	configFile := filepath.Join(dir, g.fileName)
	if !exists(configFile) {
		if _, err := g.Setup(dir); err != nil {
			return created, err
		}
		created = append(created, configFile)
	}

	for _, key := range []string{config.KeyDist, config.KeyAssets, config.KeySystems, config.KeySrc} {
		sub := g.resolve(dir, g.values.Get(key))
		if exists(sub) {
			continue
		}
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return created, errors.NewIOError(sub, "create directory", err)
		}
		created = append(created, sub)
	}

	ctx := g.context(dir)
	for _, tmpl := range g.templates {
		name, err := render(tmpl.Path, ctx)
		if err != nil {
			return created, err
		}
		file := g.resolve(dir, filepath.FromSlash(name))
		if exists(file) {
			continue
		}

		content, err := render(tmpl.Content, ctx)
		if err != nil {
			return created, err
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return created, errors.NewIOError(file, "create directory", err)
		}
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			return created, errors.NewIOError(file, "write file", err)
		}
		created = append(created, file)
	}

	return created, nil
}

func (g *ProjectGenerator) resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (g *ProjectGenerator) context(dir string) TemplateContext {
	name := filepath.Base(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		name = filepath.Base(abs)
	}

	return TemplateContext{
		Name:    name,
		Title:   Title(name),
		Dist:    filepath.ToSlash(g.values.Get(config.KeyDist)),
		Src:     filepath.ToSlash(g.values.Get(config.KeySrc)),
		Assets:  filepath.ToSlash(g.values.Get(config.KeyAssets)),
		Systems: filepath.ToSlash(g.values.Get(config.KeySystems)),
		Entry:   g.values.Get(config.KeyEntry),
	}
}

// Title turns a directory name such as "space-invaders" into "Space Invaders".
func Title(name string) string {
	words := strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}

func render(text string, ctx TemplateContext) (string, error) {
	tmpl, err := template.New("project").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sentinelAt(sentinel *errors.MagicError, path string) error {
	err := *sentinel
	err.Path = path
	return &err
}
