package workspace

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"
)

// manifest describes one project file kind.
type manifest struct {
	language string
	// name extracts the project name from the manifest; "" means fall back
	// to the file or directory name.
	name func(path string) string
}

// manifestsByExt and manifestsByName map project files to their language.
var (
	manifestsByExt = map[string]manifest{
		".csproj": {language: "csharp", name: baseName},
		".vbproj": {language: "vb", name: baseName},
		".fsproj": {language: "fsharp", name: baseName},
	}
	manifestsByName = map[string]manifest{
		"go.mod":         {language: "go", name: goModuleName},
		"Cargo.toml":     {language: "rust", name: cargoName},
		"pyproject.toml": {language: "python", name: pyprojectName},
		"package.json":   {language: "javascript", name: packageJSONName},
		"pom.xml":        {language: "java", name: pomName},
	}
)

// detectManifest reports whether the file at rel is a project manifest, and
// returns the project it declares.
func detectManifest(root, rel string, files map[string]bool) (*Unit, bool) {
	base := filepath.Base(rel)
	m, ok := manifestsByName[base]
	if !ok {
		m, ok = manifestsByExt[strings.ToLower(filepath.Ext(base))]
	}
	if !ok {
		return nil, false
	}

	dir := filepath.ToSlash(filepath.Dir(rel))
	lang := m.language
	if base == "package.json" && files[joinRel(dir, "tsconfig.json")] {
		lang = "typescript"
	}

	name := m.name(filepath.Join(root, filepath.FromSlash(rel)))
	if name == "" {
		name = dirName(root, dir)
	}
	return &Unit{Name: name, Dir: dir, Language: lang}, true
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func goModuleName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

func cargoName(path string) string {
	var doc struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return ""
	}
	return doc.Package.Name
}

func pyprojectName(path string) string {
	var doc struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return ""
	}
	if doc.Project.Name != "" {
		return doc.Project.Name
	}
	return doc.Tool.Poetry.Name
}

func packageJSONName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.Name
}

func pomName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var doc struct {
		ArtifactID string `xml:"artifactId"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.ArtifactID
}

func dirName(root, dir string) string {
	if dir == "." {
		abs, err := filepath.Abs(root)
		if err != nil {
			return filepath.Base(root)
		}
		return filepath.Base(abs)
	}
	return filepath.Base(filepath.FromSlash(dir))
}

// joinRel joins slash-separated relative paths, treating "." as the root.
func joinRel(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}
