// Command package-statistics reports which Debian packages ship the most
// files, by downloading and aggregating a mirror's Contents index.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/package-statistics/contents"
	"github.com/etnz/package-statistics/debfile"
	"github.com/etnz/package-statistics/mirror"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.yaml.in/yaml/v3"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "stats":
		runStats(os.Args[2:])
	case "archs":
		runArchs(os.Args[2:])
	case "deb":
		runDeb(os.Args[2:])
	case "help", "-h", "-help", "--help":
		printUsage()
	default:
		// A bare architecture is shorthand for "stats <architecture>".
		runStats(os.Args[1:])
	}
}

// printUsage prints the help message to stdout.
func printUsage() {
	fmt.Println("Usage: package-statistics <command> [flags]")
	fmt.Println("       package-statistics <architecture>")
	fmt.Println("\nCommands:")
	fmt.Println("  stats    Rank packages by the number of files they ship")
	fmt.Println("  archs    List architectures served by the mirror")
	fmt.Println("  deb      Report the file count of a local .deb")
}

// runStats executes the 'stats' subcommand: download the Contents index for
// one architecture, tally files per package and print the top of the ranking.
func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	confPath := fs.String("config", "", "Path to YAML mirror configuration")
	mirrorURL := fs.String("mirror", mirror.DefaultURL, "Debian mirror base URL")
	suite := fs.String("suite", "stable", "Distribution suite")
	component := fs.String("component", "main", "Archive component")
	top := fs.Int("top", 10, "Number of packages to report")
	keyringPath := fs.String("keyring", "", "ASCII-armored PGP keyring; enables InRelease verification")
	fs.Parse(args)

	arch := fs.Arg(0)
	if arch == "" {
		fmt.Println("Usage: package-statistics stats [flags] <architecture>")
		os.Exit(1)
	}
	if *top < 0 {
		fmt.Printf("Fatal: -top must not be negative, got %d\n", *top)
		os.Exit(1)
	}

	repo := mirror.Repo{
		URL:       *mirrorURL,
		Suite:     *suite,
		Component: *component,
		Progress:  os.Stderr,
	}

	if *confPath != "" {
		conf, err := decodeConfig(*confPath)
		if err != nil {
			fmt.Printf("Fatal: Could not read or parse config file %s: %v\n", *confPath, err)
			os.Exit(1)
		}
		// Flags given explicitly on the command line win over the config file.
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["mirror"] && conf.URL != "" {
			repo.URL = conf.URL
		}
		if !set["suite"] && conf.Suite != "" {
			repo.Suite = conf.Suite
		}
		if !set["component"] && conf.Component != "" {
			repo.Component = conf.Component
		}
		repo.Compression = conf.Compression
	}

	// Fetch and verify the signed Release first when a keyring is given, so
	// the download below can be authenticated.
	var rel *mirror.Release
	if *keyringPath != "" {
		key, err := os.ReadFile(*keyringPath)
		if err != nil {
			fmt.Printf("Fatal: Could not read keyring %s: %v\n", *keyringPath, err)
			os.Exit(1)
		}
		rel, err = repo.VerifiedRelease(string(key))
		if err != nil {
			fmt.Printf("Fatal: %v\n", err)
			os.Exit(1)
		}
	}

	dl, err := repo.Contents(arch)
	if err != nil {
		if errors.Is(err, mirror.ErrNotFound) {
			if archs, aerr := repo.Architectures(); aerr == nil {
				fmt.Printf("Fatal: architecture %q is not available. Mirror serves: %s\n", arch, strings.Join(archs, ", "))
			} else {
				fmt.Printf("Fatal: architecture %q is not available on %s\n", arch, repo.URL)
			}
			os.Exit(1)
		}
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}

	ranked, err := contents.Aggregate(dl, *top)
	if err != nil {
		dl.Close()
		fmt.Printf("Fatal: reading Contents index: %v\n", err)
		os.Exit(1)
	}
	dl.Close()

	if rel != nil {
		if err := dl.Verify(rel); err != nil {
			fmt.Printf("Fatal: %v\n", err)
			os.Exit(1)
		}
	}

	printRanked(ranked)
}

// runArchs executes the 'archs' subcommand.
func runArchs(args []string) {
	fs := flag.NewFlagSet("archs", flag.ExitOnError)
	mirrorURL := fs.String("mirror", mirror.DefaultURL, "Debian mirror base URL")
	suite := fs.String("suite", "stable", "Distribution suite")
	fs.Parse(args)

	repo := mirror.Repo{URL: *mirrorURL, Suite: *suite}
	archs, err := repo.Architectures()
	if err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
	for _, a := range archs {
		fmt.Println(a)
	}
}

// runDeb executes the 'deb' subcommand: report the payload file count of a
// local package.
func runDeb(args []string) {
	fs := flag.NewFlagSet("deb", flag.ExitOnError)
	fs.Parse(args)

	path := fs.Arg(0)
	if path == "" {
		fmt.Println("Usage: package-statistics deb <file.deb>")
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := debfile.Read(f)
	if err != nil {
		fmt.Printf("Fatal: parsing %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("%s %s (%s): %d files\n", info.Name, info.Version, info.Architecture, info.Files)
}

// printRanked renders the ranking as ordinal, package, file count.
func printRanked(ranked []contents.PackageCount) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "Package", "Files"})
	for i, pc := range ranked {
		tbl.AppendRow(table.Row{i + 1, pc.Package, pc.Files})
	}
	tbl.Render()
}

// decodeConfig reads the YAML mirror configuration.
func decodeConfig(path string) (mirror.Repo, error) {
	// Internal DTO for YAML deserialization
	type yamlMirror struct {
		URL         string `yaml:"url"`
		Suite       string `yaml:"suite"`
		Component   string `yaml:"component"`
		Compression string `yaml:"compression"`
	}
	type yamlConfig struct {
		Mirror yamlMirror `yaml:"mirror"`
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mirror.Repo{}, err
	}

	var dto yamlConfig
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return mirror.Repo{}, err
	}

	compression, err := mirror.ParseCompression(dto.Mirror.Compression)
	if err != nil {
		return mirror.Repo{}, err
	}

	return mirror.Repo{
		URL:         dto.Mirror.URL,
		Suite:       dto.Mirror.Suite,
		Component:   dto.Mirror.Component,
		Compression: compression,
	}, nil
}
