package fixture

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

// Extensions are the suffixes Discover treats as fixture files.
var Extensions = []string{".fixture.yaml", ".fixture.yml", ".fixture.json"}

// IsFixtureFile reports whether name has one of the fixture Extensions.
func IsFixtureFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

type Config struct {
	Logger micrologger.Logger
}

type Loader struct {
	logger micrologger.Logger
}

func New(config Config) (*Loader, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	l := &Loader{
		logger: config.Logger,
	}

	return l, nil
}

// Discover returns the fixture files under path. A file path is returned as
// is whatever its name; directories are walked for Extensions, skipping
// hidden directories.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, microerror.Maskf(fixtureLoadError, "%s: %s", path, err.Error())
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsFixtureFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, microerror.Maskf(fixtureLoadError, "%s: %s", path, err.Error())
	}

	sort.Strings(files)
	return files, nil
}

// Load reads and parses one suite. Expected bodies, inline or from
// bodyFile, are converted to JSON; bodyFile is resolved relative to the
// fixture and may not leave its directory.
func (l *Loader) Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Log("level", "error", "message", "reading fixture failed", "path", path, "error", err.Error())
		return nil, microerror.Maskf(fixtureLoadError, "%s: %s", path, err.Error())
	}

	suite, err := l.Parse(data, filepath.Dir(path))
	if err != nil {
		l.logger.Log("level", "error", "message", "parsing fixture failed", "path", path, "error", err.Error())
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	suite.Path = path
	if suite.Name == "" {
		suite.Name = suiteName(path)
	}

	return suite, nil
}

// Parse decodes a suite from YAML or JSON. baseDir anchors bodyFile paths.
func (l *Loader) Parse(data []byte, baseDir string) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, microerror.Maskf(fixtureLoadError, "%s", err.Error())
	}

	if len(suite.Cases) == 0 {
		return nil, microerror.Maskf(fixtureLoadError, "suite has no cases")
	}

	seen := make(map[string]int, len(suite.Cases))
	for i, c := range suite.Cases {
		if c == nil {
			return nil, microerror.Maskf(fixtureLoadError, "case %d is empty", i+1)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("case %d", i+1)
		}
		if prev, ok := seen[c.Name]; ok {
			return nil, microerror.Maskf(fixtureLoadError, "case %d: name %q already used by case %d", i+1, c.Name, prev)
		}
		seen[c.Name] = i + 1

		if c.Request.URL == "" {
			return nil, microerror.Maskf(fixtureLoadError, "case %q: request.url is required", c.Name)
		}
		if c.Request.Method == "" {
			c.Request.Method = "GET"
		}
		c.Request.Method = strings.ToUpper(c.Request.Method)

		if err := l.loadBody(&c.Expect, baseDir); err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
	}

	return &suite, nil
}

func (l *Loader) loadBody(e *Expect, baseDir string) error {
	if e.Body.Kind != 0 && e.BodyFile != "" {
		return microerror.Maskf(fixtureLoadError, "expect.body and expect.bodyFile are mutually exclusive")
	}

	if e.Body.Kind != 0 {
		data, err := nodeToJSON(&e.Body)
		if err != nil {
			return microerror.Mask(err)
		}
		e.body = data
		return nil
	}

	if e.BodyFile == "" {
		return nil
	}

	path := e.BodyFile
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	if err := validatePathWithinBase(path, baseDir); err != nil {
		return microerror.Mask(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return microerror.Maskf(fixtureLoadError, "bodyFile %s: %s", e.BodyFile, err.Error())
	}
	if !gjson.ValidBytes(data) {
		return microerror.Maskf(fixtureLoadError, "bodyFile %s is not valid JSON", e.BodyFile)
	}
	e.body = pretty.Ugly(data)

	return nil
}

// validatePathWithinBase checks that the resolved path stays within the
// base directory.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return microerror.Maskf(fixtureLoadError, "resolving base directory: %s", err.Error())
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return microerror.Maskf(fixtureLoadError, "resolving path: %s", err.Error())
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return microerror.Maskf(fixtureLoadError, "path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

func suiteName(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, exts := range [][]string{Extensions, {".yaml", ".yml", ".json"}} {
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				return name[:len(name)-len(ext)]
			}
		}
	}
	return name
}
