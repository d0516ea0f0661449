package scaffolding

// FileTemplate is a file written into a new project.
type FileTemplate struct {
	// Path is relative to the project root and may reference config keys,
	// e.g. "{{.Src}}/index.ts".
	Path    string
	Content string
}

// TemplateContext holds the values available to project templates.
type TemplateContext struct {
	Name    string
	Title   string
	Dist    string
	Src     string
	Assets  string
	Systems string
	Entry   string
}

// ProjectTemplates returns the starter files of a new project.
func ProjectTemplates() []FileTemplate {
	return []FileTemplate{
		{Path: "{{.Src}}/{{.Entry}}", Content: entryTemplate},
		{Path: "{{.Dist}}/index.html", Content: indexTemplate},
		{Path: "README.md", Content: readmeTemplate},
		{Path: ".gitignore", Content: gitignoreTemplate},
	}
}

const entryTemplate = `// Entry point of {{.Title}}.
// magic bundles this file together with the framework into {{.Dist}}/bundle.js.

console.log("✨ {{.Title}} is running");
`

const indexTemplate = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
  </head>
  <body>
    <canvas id="game"></canvas>
    <script src="bundle.js"></script>
  </body>
</html>
`

const readmeTemplate = `# {{.Title}}

A game built with the Magic Framework.

## Development

    magic dev

Changes in ` + "`{{.Assets}}/`" + ` and ` + "`{{.Systems}}/`" + ` rebuild the project; editing
` + "`magic.config`" + ` restarts the watchers.

## Production build

    magic build

The bundle is written to ` + "`{{.Dist}}/`" + `.
`

const gitignoreTemplate = `node_modules/
.magic/
{{.Dist}}/bundle.js
`
