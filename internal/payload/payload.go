// Package payload renders the HTTP service and benchmark scripts pushed to instances,
// and the shell commands that install and start them.
package payload

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// VenvDir is the virtualenv created in the remote user's home
const VenvDir = "fastapi_env"

// App describes one rendered service instance
type App struct {
	InstanceID string
	Cluster    string
	Path       string
	Port       int
}

// Benchmark describes the load test script
type Benchmark struct {
	URL      string
	Requests int
}

// RenderApp returns the service source for one instance
func RenderApp(app App) ([]byte, error) {
	if app.Path == "" {
		app.Path = "/" + app.Cluster
	}
	return render("app.py.tmpl", app)
}

// RenderBenchmark returns the load test source
func RenderBenchmark(b Benchmark) ([]byte, error) {
	if b.Requests <= 0 {
		return nil, fmt.Errorf("benchmark requests must be positive, got %d", b.Requests)
	}
	return render("benchmark.py.tmpl", b)
}

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// SetupCommands installs python, tmux and the service dependencies
func SetupCommands() []string {
	return []string{
		"sudo apt-get update -y",
		"sudo apt-get install python3-pip python3-venv tmux -y",
		"python3 -m venv " + VenvDir,
		inVenv("pip install fastapi uvicorn"),
	}
}

// StartCommands launches the service uploaded at appPath in a detached tmux session
func StartCommands(appPath string, port int) []string {
	dir, file := path.Split(appPath)
	module := file[:len(file)-len(path.Ext(file))]
	return []string{
		fmt.Sprintf(`tmux new-session -d -s fastapi_session "cd %s && source %s/bin/activate && uvicorn %s:app --host 0.0.0.0 --port %d"`,
			path.Clean(dir), VenvDir, module, port),
	}
}

// BenchmarkCommands installs aiohttp and runs the script at scriptPath
func BenchmarkCommands(home, scriptPath string) []string {
	return []string{
		inHomeVenv(home, "pip install aiohttp"),
		inHomeVenv(home, "pip freeze | grep aiohttp"),
		inHomeVenv(home, "python3 "+scriptPath),
	}
}

func inVenv(cmd string) string {
	return fmt.Sprintf(`bash -c "source %s/bin/activate && %s"`, VenvDir, cmd)
}

func inHomeVenv(home, cmd string) string {
	return fmt.Sprintf(`bash -c "source %s/bin/activate && %s"`, path.Join(home, VenvDir), cmd)
}
