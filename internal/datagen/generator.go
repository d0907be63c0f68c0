// Package datagen writes a fixed set of sample files used as upload and
// download fixtures against the lab server.
package datagen

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"

	"github.com/gonzalop/ftplab/internal/logging"
)

// DefaultDir is the output directory used when none is given.
const DefaultDir = "ftp_test_data"

const dateLayout = "2006-01-02"

type file struct {
	name     string
	filename string
	render   func(g *Generator) ([]byte, error)
}

// files is the fixed, ordered set of fixtures.
var files = []file{
	{"Employee Records", "employee_records.csv", (*Generator).employeeCSV},
	{"App Config", "app_config.json", (*Generator).configJSON},
	{"Sales Data", "sales_data.csv", (*Generator).salesCSV},
	{"System Log", "system.log", (*Generator).systemLog},
	{"Documentation", "README.txt", (*Generator).readme},
	{"Network Config", "network_config.ini", (*Generator).networkINI},
}

// Result describes one generated file.
type Result struct {
	Name     string
	Filename string
	Size     int64
	Err      error
}

// Summary is the outcome of GenerateAll.
type Summary struct {
	Dir     string
	Results []Result
}

// Created reports how many files were written.
func (s Summary) Created() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed reports how many files could not be written.
func (s Summary) Failed() int { return len(s.Results) - s.Created() }

// Generator writes the fixtures into a directory.
type Generator struct {
	dir string
	out io.Writer
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source used for sales rows and log entries.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithClock sets the clock used for dates and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New returns a Generator writing into dir and reporting progress to out.
func New(dir string, out io.Writer, opts ...Option) *Generator {
	if dir == "" {
		dir = DefaultDir
	}
	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		dir: dir,
		out: out,
		rng: rand.New(rand.NewPCG(seed, seed>>1)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the output directory.
func (g *Generator) Dir() string { return g.dir }

// GenerateAll creates the output directory and writes every fixture,
// printing one status line per file and a closing summary. The error is
// non-nil only when the directory cannot be created.
func (g *Generator) GenerateAll() (Summary, error) {
	fmt.Fprintln(g.out, "FTP Test Data Generator")
	fmt.Fprintln(g.out, strings.Repeat("=", 40))

	summary := Summary{Dir: g.dir}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		fmt.Fprintf(g.out, "Error creating directory: %v\n", err)
		fmt.Fprintln(g.out, color.Red.Sprint("Failed to create output directory"))
		return summary, fmt.Errorf("failed to create %s: %w", g.dir, err)
	}

	fmt.Fprintf(g.out, "Generating files in: %s\n", g.dir)
	fmt.Fprintln(g.out, strings.Repeat("-", 40))

	for _, f := range files {
		r := g.generate(f)
		if r.Err != nil {
			fmt.Fprintln(g.out, color.Red.Sprintf("❌ Failed: %s", r.Name))
		} else {
			fmt.Fprintln(g.out, color.Green.Sprintf("✅ %s: %s (%s)", r.Name, r.Filename, formatSize(r.Size)))
		}
		summary.Results = append(summary.Results, r)
	}

	fmt.Fprintf(g.out, "\nSummary: %d/%d files created\n", summary.Created(), len(files))
	if failed := summary.Failed(); failed == 0 {
		fmt.Fprintln(g.out, color.Green.Sprint("🎉 All files generated successfully!"))
	} else {
		fmt.Fprintln(g.out, color.Yellow.Sprintf("⚠️  %d files failed", failed))
	}
	return summary, nil
}

func (g *Generator) generate(f file) Result {
	r := Result{Name: f.name, Filename: f.filename}
	path := filepath.Join(g.dir, f.filename)

	data, err := f.render(g)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(g.out, "Error writing %s %s: %v\n", kind(f.filename), path, err)
		r.Err = err
		return r
	}
	r.Size = int64(len(data))
	return r
}

func kind(filename string) string {
	switch filepath.Ext(filename) {
	case ".csv":
		return "CSV"
	case ".json":
		return "JSON"
	default:
		return "text"
	}
}

func formatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}

// writeCSV renders rows with CRLF line endings, the dialect spreadsheet
// tools expect.
func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) employeeCSV() ([]byte, error) {
	return writeCSV([][]string{
		{"ID", "Name", "Department", "Email", "Salary", "Hire_Date"},
		{"001", "Alice Johnson", "Engineering", "alice.johnson@company.com", "75000", "2022-03-15"},
		{"002", "Bob Smith", "Marketing", "bob.smith@company.com", "65000", "2021-08-22"},
		{"003", "Carol Williams", "HR", "carol.williams@company.com", "58000", "2020-11-10"},
		{"004", "David Brown", "Engineering", "david.brown@company.com", "82000", "2019-05-18"},
		{"005", "Eva Davis", "Sales", "eva.davis@company.com", "72000", "2023-01-09"},
	})
}

type appConfig struct {
	App struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Debug   bool   `json:"debug"`
	} `json:"app"`
	Database struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		Name string `json:"name"`
	} `json:"database"`
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		SSL  bool   `json:"ssl"`
	} `json:"server"`
	Features struct {
		Auth      bool `json:"auth"`
		Upload    bool `json:"upload"`
		Analytics bool `json:"analytics"`
	} `json:"features"`
}

func (g *Generator) configJSON() ([]byte, error) {
	var c appConfig
	c.App.Name, c.App.Version, c.App.Debug = "FTP Demo", "1.0.0", true
	c.Database.Host, c.Database.Port, c.Database.Name = "localhost", 5432, "demo_db"
	c.Server.Host, c.Server.Port, c.Server.SSL = "0.0.0.0", 8080, false
	c.Features.Auth, c.Features.Upload, c.Features.Analytics = true, true, true
	return json.MarshalIndent(c, "", "  ")
}

var (
	products    = []string{"Widget A", "Widget B", "Gadget X", "Tool Pro"}
	salespeople = []string{"John Doe", "Jane Smith", "Mike Johnson"}
)

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func formatAmount(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (g *Generator) salesCSV() ([]byte, error) {
	rows := [][]string{{"Date", "Product", "Quantity", "Price", "Total", "Salesperson"}}
	base := g.now().AddDate(0, 0, -30)

	for day := range 30 {
		date := base.AddDate(0, 0, day).Format(dateLayout)
		for range 1 + g.rng.IntN(3) {
			quantity := 1 + g.rng.IntN(5)
			price := round2(20 + 180*g.rng.Float64())
			rows = append(rows, []string{
				date,
				products[g.rng.IntN(len(products))],
				strconv.Itoa(quantity),
				formatAmount(price),
				formatAmount(round2(float64(quantity) * price)),
				salespeople[g.rng.IntN(len(salespeople))],
			})
		}
	}
	return writeCSV(rows)
}

var (
	levels     = []string{"INFO", "WARNING", "ERROR"}
	components = []string{"Database", "WebServer", "Auth"}
	messages   = map[string]string{
		"INFO":    "Service started",
		"WARNING": "High memory usage",
		"ERROR":   "Connection failed",
	}
)

func (g *Generator) systemLog() ([]byte, error) {
	base := g.now().Add(-24 * time.Hour)

	entries := make([]string, 0, 20)
	for range 20 {
		ts := base.Add(time.Duration(g.rng.IntN(1441)) * time.Minute)
		level := levels[g.rng.IntN(len(levels))]
		component := components[g.rng.IntN(len(components))]
		entries = append(entries, fmt.Sprintf("[%s] [%s] %s: %s\n",
			ts.Format(logging.TimeLayout), level, component, messages[level]))
	}
	slices.Sort(entries)
	return []byte(strings.Join(entries, "")), nil
}

const readmeTemplate = `FTP Test Data Documentation
===========================

Generated: %s

Files included:
- employee_records.csv: Employee data
- app_config.json: App configuration
- sales_data.csv: Sales transactions
- system.log: System logs
- network_config.ini: Network settings

Usage:
1. Upload files to FTP server
2. Test download functionality
3. Verify file integrity
4. Clean up after testing

Note: All data is fictional for testing only.
`

func (g *Generator) readme() ([]byte, error) {
	return []byte(fmt.Sprintf(readmeTemplate, g.now().Format(logging.TimeLayout))), nil
}

const networkConfig = `[NETWORK]
interface=eth0
ip_address=192.168.1.100
gateway=192.168.1.1
dns=8.8.8.8

[FTP]
port=21
passive_mode=true
max_connections=50
timeout=300

[SECURITY]
firewall_enabled=true
anonymous_access=false
max_attempts=3
`

func (g *Generator) networkINI() ([]byte, error) {
	return []byte(networkConfig), nil
}
